package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/uvcctl/internal/api/models"
	"github.com/smazurov/uvcctl/internal/session"
)

func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "take-snapshot",
		Method:      http.MethodPost,
		Path:        "/api/snapshot",
		Summary:     "Take Snapshot",
		Description: "Write the next delivered frame as a JPEG still",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500, 503, 504},
	}, func(ctx context.Context, _ *struct{}) (*models.SnapshotResponse, error) {
		if s.options.Snapshots == nil {
			return nil, huma.Error503ServiceUnavailable("snapshots are not configured")
		}
		if s.options.Controller.Status().State != session.StateOpen {
			return nil, mapSessionError(session.ErrSessionClosed)
		}

		timer := time.NewTimer(s.options.SnapshotTimeout)
		defer timer.Stop()

		select {
		case res := <-s.options.Snapshots.Request():
			if res.Err != nil {
				return nil, huma.Error500InternalServerError("Failed to write snapshot", res.Err)
			}
			return &models.SnapshotResponse{Body: models.SnapshotData{
				Path:   res.Path,
				Width:  res.Width,
				Height: res.Height,
			}}, nil
		case <-timer.C:
			return nil, huma.Error504GatewayTimeout("no frame delivered within " + s.options.SnapshotTimeout.String())
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
