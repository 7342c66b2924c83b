package models

import "github.com/smazurov/uvcctl/internal/session"

type SessionResponse struct {
	Body session.Status
}

type SessionOpenRequest struct {
	Body struct {
		ResolutionIndex *int `json:"resolution_index,omitempty" example:"11" doc:"Catalog index, the configured default when omitted"`
		Recording       bool `json:"recording,omitempty" doc:"Open for recording"`
	} `required:"false"`
}

type SessionRestartRequest struct {
	Body struct {
		ResolutionIndex *int `json:"resolution_index,omitempty" example:"11" doc:"Target catalog index, the last requested one when omitted"`
		Recording       bool `json:"recording,omitempty" doc:"Reopen for recording"`
		Hard            bool `json:"hard,omitempty" doc:"Run the hard reset with a throwaway open first"`
		DeviceIndex     *int `json:"device_index,omitempty" example:"2" doc:"Reopen on this /dev/videoN instead of the current device"`
	} `required:"false"`
}
