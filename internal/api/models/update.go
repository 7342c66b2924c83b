package models

import "time"

// ReleaseBody compares the newest published release with the running binary.
type ReleaseBody struct {
	Current     string    `json:"current" example:"0.3.0" doc:"Running version"`
	Latest      string    `json:"latest" example:"0.4.0" doc:"Newest published version"`
	Newer       bool      `json:"newer" doc:"Whether latest is newer than current"`
	Notes       string    `json:"notes,omitempty" doc:"Release notes in Markdown"`
	URL         string    `json:"url,omitempty" doc:"Release page"`
	PublishedAt time.Time `json:"published_at,omitzero" doc:"Publication time"`
	Size        int       `json:"size,omitempty" doc:"Asset size in bytes"`
}

type ReleaseResponse struct {
	Body ReleaseBody
}

// BackupBody describes the binary kept for rollback.
type BackupBody struct {
	Version string    `json:"version" example:"0.3.0" doc:"Version of the kept binary"`
	SavedAt time.Time `json:"saved_at" doc:"When it was set aside"`
}

type BackupResponse struct {
	Body BackupBody
}

// UpdaterStatusBody is the body of GET /api/update/status.
type UpdaterStatusBody struct {
	Phase     string      `json:"phase" example:"idle" enum:"idle,checking,available,applying,restarting,failed,rolled_back" doc:"Updater phase"`
	Current   string      `json:"current" doc:"Running version"`
	Target    string      `json:"target,omitempty" doc:"Release found by the last check"`
	LastError string      `json:"last_error,omitempty" doc:"Failure of the last operation"`
	CheckedAt *time.Time  `json:"checked_at,omitempty" doc:"Time of the last check"`
	Backup    *BackupBody `json:"backup,omitempty" doc:"Binary available for rollback"`
}

type UpdaterStatusResponse struct {
	Body UpdaterStatusBody
}
