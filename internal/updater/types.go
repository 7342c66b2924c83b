// Package updater replaces the running uvcctl binary with the newest GitHub
// release. The binary it replaces is kept so the update can be undone.
package updater

import (
	"context"
	"errors"
	"time"
)

// DefaultRepository is the GitHub slug releases are fetched from.
const DefaultRepository = "smazurov/uvcctl"

var (
	ErrDisabled  = errors.New("self-update disabled")
	ErrBusy      = errors.New("another update operation is running")
	ErrNoRelease = errors.New("repository has no matching release")
	ErrUpToDate  = errors.New("already running the latest release")
	ErrNoBackup  = errors.New("no previous binary to roll back to")
)

// Phase is what the updater is doing or last did.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseChecking   Phase = "checking"
	PhaseAvailable  Phase = "available"
	PhaseApplying   Phase = "applying"
	PhaseRestarting Phase = "restarting"
	PhaseFailed     Phase = "failed"
	PhaseRolledBack Phase = "rolled_back"
)

// Service checks for, installs and reverts releases. All methods except
// Status and Disabled return ErrDisabled when the service cannot run.
type Service interface {
	Check(ctx context.Context) (Release, error)
	// Apply installs the newest release and returns it. ErrUpToDate means
	// nothing was installed.
	Apply(ctx context.Context) (Release, error)
	Rollback(ctx context.Context) (Backup, error)
	Status() Status
	// Disabled returns nil when the service is usable, otherwise an error
	// wrapping ErrDisabled with the reason.
	Disabled() error
}

// Release compares the newest published release with the running binary.
type Release struct {
	Current     string    `json:"current"`
	Latest      string    `json:"latest"`
	Newer       bool      `json:"newer"`
	Notes       string    `json:"notes,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
	Size        int       `json:"size,omitempty"`
}

// Backup describes the binary kept from the previous apply.
type Backup struct {
	Version string    `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Target  string    `json:"target"`
}

// Status is a snapshot of the updater.
type Status struct {
	Phase     Phase      `json:"phase"`
	Current   string     `json:"current"`
	Target    string     `json:"target,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
	Backup    *Backup    `json:"backup,omitempty"`
}

// Options configures NewService.
type Options struct {
	Repository string // GitHub slug, DefaultRepository when empty
	Prerelease bool
	// BackupDir holds the previous binary. Defaults to ~/.cache/uvcctl/backup.
	BackupDir string
	// RestartAfterApply sends SIGTERM to this process after a successful
	// apply or rollback so the supervisor starts the new binary.
	RestartAfterApply bool
}
