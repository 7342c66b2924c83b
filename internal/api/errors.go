package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/uvcctl/internal/session"
)

// mapSessionError converts session failures to HTTP errors. The session
// code is kept in the problem detail so clients can branch on it.
func mapSessionError(err error) error {
	var se *session.Error
	if !errors.As(err, &se) {
		return huma.Error500InternalServerError(err.Error())
	}

	detail := &huma.ErrorDetail{Location: "session", Message: string(se.Code), Value: se.Stage}
	switch se.Code {
	case session.CodeUnknownProperty:
		return huma.Error404NotFound(se.Error(), detail)
	case session.CodeInvalidIndex, session.CodePropertyNotSettable:
		return huma.Error422UnprocessableEntity(se.Error(), detail)
	case session.CodeSessionClosed:
		return huma.Error409Conflict(se.Error(), detail)
	case session.CodeDeviceUnavailable, session.CodeRestartExhausted,
		session.CodeNoFrameAvailable, session.CodeUnstableStream:
		return huma.Error503ServiceUnavailable(se.Error(), detail)
	default:
		return huma.Error500InternalServerError(se.Error(), detail)
	}
}
