package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/uvcctl/internal/api/models"
	"github.com/smazurov/uvcctl/internal/updater"
)

func (s *Server) registerUpdateRoutes() {
	svc := s.options.UpdateService
	if svc == nil {
		return
	}

	op := func(id, method, path, summary string, errs ...int) huma.Operation {
		return huma.Operation{
			OperationID: id,
			Method:      method,
			Path:        path,
			Summary:     summary,
			Tags:        []string{"update"},
			Security:    withAuth(),
			Errors:      append([]int{401, 503}, errs...),
		}
	}

	huma.Register(s.api, op("check-update", http.MethodGet, "/api/update/check",
		"Compare the running version with the newest release", 404, 409, 502),
		func(ctx context.Context, _ *struct{}) (*models.ReleaseResponse, error) {
			rel, err := svc.Check(ctx)
			if err != nil {
				return nil, updateError(err)
			}
			return &models.ReleaseResponse{Body: releaseBody(rel)}, nil
		})

	huma.Register(s.api, op("get-update-status", http.MethodGet, "/api/update/status",
		"Updater phase and rollback availability"),
		func(_ context.Context, _ *struct{}) (*models.UpdaterStatusResponse, error) {
			if err := svc.Disabled(); err != nil {
				return nil, updateError(err)
			}
			st := svc.Status()
			body := models.UpdaterStatusBody{
				Phase:     string(st.Phase),
				Current:   st.Current,
				Target:    st.Target,
				LastError: st.LastError,
				CheckedAt: st.CheckedAt,
			}
			if st.Backup != nil {
				body.Backup = &models.BackupBody{Version: st.Backup.Version, SavedAt: st.Backup.SavedAt}
			}
			return &models.UpdaterStatusResponse{Body: body}, nil
		})

	huma.Register(s.api, op("apply-update", http.MethodPost, "/api/update/apply",
		"Install the newest release and restart", 404, 409, 502),
		func(ctx context.Context, _ *struct{}) (*models.ReleaseResponse, error) {
			rel, err := svc.Apply(ctx)
			if err != nil {
				return nil, updateError(err)
			}
			return &models.ReleaseResponse{Body: releaseBody(rel)}, nil
		})

	huma.Register(s.api, op("rollback-update", http.MethodPost, "/api/update/rollback",
		"Restore the previous binary and restart", 404, 409),
		func(ctx context.Context, _ *struct{}) (*models.BackupResponse, error) {
			b, err := svc.Rollback(ctx)
			if err != nil {
				return nil, updateError(err)
			}
			return &models.BackupResponse{Body: models.BackupBody{Version: b.Version, SavedAt: b.SavedAt}}, nil
		})
}

func releaseBody(r updater.Release) models.ReleaseBody {
	return models.ReleaseBody(r)
}

func updateError(err error) error {
	switch {
	case errors.Is(err, updater.ErrDisabled):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, updater.ErrBusy), errors.Is(err, updater.ErrUpToDate):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, updater.ErrNoRelease), errors.Is(err, updater.ErrNoBackup):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error502BadGateway(err.Error())
	}
}
