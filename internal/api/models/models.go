// Package models holds the request and response bodies of the HTTP API.
package models

// HealthData is the body of GET /api/health.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// VersionData is the body of GET /api/version.
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Body struct {
		Message string `json:"message" doc:"Status message"`
	}
}

// NewMessage builds a MessageResponse.
func NewMessage(msg string) *MessageResponse {
	resp := &MessageResponse{}
	resp.Body.Message = msg
	return resp
}
