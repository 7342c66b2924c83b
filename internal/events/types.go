package events

import "github.com/smazurov/uvcctl/internal/devices"

// Event type constants for kelindar/event.
const (
	TypeSessionState uint32 = iota + 1
	TypeRestartAttempt
	TypePropertyChanged
	TypePropertyProbed
	TypeDeviceDiscovery
	TypeFrameStats
	TypeLogEntry
	TypeSnapshotCaptured
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateEvent is published on every session state transition.
type SessionStateEvent struct {
	SessionID       string `json:"session_id" doc:"Session identifier"`
	From            string `json:"from" example:"opening" doc:"Previous state"`
	To              string `json:"to" example:"open" doc:"New state"`
	DeviceIndex     *int   `json:"device_index,omitempty" example:"2" doc:"Resolved /dev/videoN index"`
	ResolutionIndex *int   `json:"resolution_index,omitempty" example:"11" doc:"Catalog index in use"`
	Error           string `json:"error,omitempty" doc:"Failure that caused the transition"`
	Timestamp       string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateEvent.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// RestartAttemptEvent is published after each reopen attempt of the restart protocol.
type RestartAttemptEvent struct {
	SessionID       string `json:"session_id" doc:"Session identifier"`
	Attempt         int    `json:"attempt" example:"1" doc:"Attempt number, starting at 1"`
	ResolutionIndex int    `json:"resolution_index" example:"11" doc:"Catalog index tried"`
	Final           bool   `json:"final" doc:"Whether this was the known-good fallback attempt"`
	Success         bool   `json:"success" doc:"Whether the attempt produced a validated stream"`
	Error           string `json:"error,omitempty" doc:"Attempt failure"`
	Timestamp       string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RestartAttemptEvent.
func (e RestartAttemptEvent) Type() uint32 { return TypeRestartAttempt }

// PropertyChangedEvent is published after a property write, applied or not.
type PropertyChangedEvent struct {
	Name      string  `json:"name" example:"gain" doc:"Property name"`
	Requested float64 `json:"requested" example:"50" doc:"Requested value"`
	Value     float64 `json:"value" example:"50" doc:"Value read back after the write"`
	Applied   bool    `json:"applied" doc:"Whether any identifier accepted the value"`
	AppliedID uint32  `json:"applied_id,omitempty" doc:"Identifier that accepted the value"`
	Attempts  int     `json:"attempts" doc:"Number of identifier writes tried"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PropertyChangedEvent.
func (e PropertyChangedEvent) Type() uint32 { return TypePropertyChanged }

// PropertyProbedEvent is published after a changeable probe.
type PropertyProbedEvent struct {
	Name       string `json:"name" example:"focus" doc:"Property name"`
	Changeable string `json:"changeable" example:"no" enum:"yes,no,unknown" doc:"Probe verdict"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PropertyProbedEvent.
func (e PropertyProbedEvent) Type() uint32 { return TypePropertyProbed }

// DeviceDiscoveryEvent represents device hotplug events.
type DeviceDiscoveryEvent struct {
	devices.DeviceInfo
	HighRes   bool   `json:"high_res" doc:"Device advertises at least 1920x1080"`
	Action    string `json:"action" example:"added" doc:"Action type: added, removed, changed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// FrameStatsEvent is published periodically by the frame pump.
type FrameStatsEvent struct {
	Frames    uint64  `json:"frames" example:"300" doc:"Frames delivered since the pump started"`
	Failed    uint64  `json:"failed" example:"2" doc:"Failed pulls since the pump started"`
	FPS       float64 `json:"fps" example:"29.8" doc:"Effective frame rate over the last window"`
	Width     int     `json:"width" example:"1920" doc:"Frame width"`
	Height    int     `json:"height" example:"1080" doc:"Frame height"`
	Format    string  `json:"format" example:"MJPEG" doc:"Frame format"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameStatsEvent.
func (e FrameStatsEvent) Type() uint32 { return TypeFrameStats }

// SnapshotCapturedEvent is published when a still image is written.
type SnapshotCapturedEvent struct {
	Path      string `json:"path" example:"/var/lib/uvcctl/1737973800.jpg" doc:"Written file"`
	Width     int    `json:"width" example:"1920" doc:"Image width"`
	Height    int    `json:"height" example:"1080" doc:"Image height"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SnapshotCapturedEvent.
func (e SnapshotCapturedEvent) Type() uint32 { return TypeSnapshotCaptured }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
