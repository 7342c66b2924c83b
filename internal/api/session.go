package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/uvcctl/internal/api/models"
	"github.com/smazurov/uvcctl/internal/session"
)

func (s *Server) registerSessionRoutes() {
	ctrl := s.options.Controller

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/session",
		Summary:     "Session Status",
		Description: "Current state, device, resolution index and delivered resolution",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SessionResponse, error) {
		return &models.SessionResponse{Body: ctrl.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "open-session",
		Method:      http.MethodPost,
		Path:        "/api/session/open",
		Summary:     "Open Session",
		Description: "Open the device at a catalog index and validate the delivered resolution",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(ctx context.Context, input *models.SessionOpenRequest) (*models.SessionResponse, error) {
		index := s.options.DefaultResolutionIndex
		if input.Body.ResolutionIndex != nil {
			index = *input.Body.ResolutionIndex
		}
		st, err := ctrl.Open(ctx, index, input.Body.Recording)
		if err != nil {
			return nil, mapSessionError(err)
		}
		return &models.SessionResponse{Body: st}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "close-session",
		Method:      http.MethodPost,
		Path:        "/api/session/close",
		Summary:     "Close Session",
		Description: "Release the device. Closing a closed session is a no-op.",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.SessionResponse, error) {
		if err := ctrl.Close(); err != nil {
			return nil, mapSessionError(err)
		}
		return &models.SessionResponse{Body: ctrl.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-session",
		Method:      http.MethodPost,
		Path:        "/api/session/restart",
		Summary:     "Restart Session",
		Description: "Run the restart protocol: cooldown, retries with backoff, then the known-good fallback",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(ctx context.Context, input *models.SessionRestartRequest) (*models.SessionResponse, error) {
		st, err := ctrl.Restart(ctx, session.RestartOptions{
			Index:          input.Body.ResolutionIndex,
			Recording:      input.Body.Recording,
			Hard:           input.Body.Hard,
			DeviceOverride: input.Body.DeviceIndex,
		})
		if err != nil {
			return nil, mapSessionError(err)
		}
		return &models.SessionResponse{Body: st}, nil
	})
}
