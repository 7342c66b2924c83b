package session

// State is the lifecycle state of a session.
type State string

// Session states.
const (
	StateClosed     State = "closed"     // No handle held
	StateOpening    State = "opening"    // Negotiating a resolution
	StateOpen       State = "open"       // Streaming at a validated resolution
	StateRestarting State = "restarting" // Inside the restart protocol
	StateFailed     State = "failed"     // Restart exhausted, needs an explicit Open
)

// Resolution is what the device actually delivers.
type Resolution struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
}

// Status is a point-in-time view of a session.
type Status struct {
	ID                 string      `json:"id"`
	State              State       `json:"state"`
	DeviceIndex        *int        `json:"device_index,omitempty"`
	ResolutionIndex    *int        `json:"resolution_index,omitempty"`
	LastRequestedIndex *int        `json:"last_requested_index,omitempty"`
	Resolution         *Resolution `json:"resolution,omitempty"`
	Format             string      `json:"format,omitempty"`
	Recording          bool        `json:"recording"`
}

// StateChange is passed to Hooks.OnStateChange. DeviceIndex and
// ResolutionIndex reflect the session after the transition.
type StateChange struct {
	SessionID       string
	From            State
	To              State
	DeviceIndex     *int
	ResolutionIndex *int
	Err             error
}

// RestartAttempt is passed to Hooks.OnRestartAttempt.
type RestartAttempt struct {
	SessionID       string
	Attempt         int
	ResolutionIndex int
	Final           bool
	Err             error
}

// Hooks receive notifications from a session. Hooks run synchronously on the
// caller's goroutine and must not call back into the session.
type Hooks struct {
	OnStateChange    func(StateChange)
	OnRestartAttempt func(RestartAttempt)
	OnFrame          func(ok bool)
}
