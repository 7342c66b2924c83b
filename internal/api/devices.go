package api

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/uvcctl/internal/api/models"
	"github.com/smazurov/uvcctl/internal/devices"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture nodes with a high-resolution hint",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(_ context.Context, _ *struct{}) (*models.DeviceResponse, error) {
		if s.options.Devices == nil {
			return nil, huma.Error503ServiceUnavailable("device detection is not configured")
		}
		found, err := s.options.Devices.FindDevices()
		if errors.Is(err, devices.ErrUnsupportedPlatform) {
			return nil, huma.Error503ServiceUnavailable(err.Error())
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list devices", err)
		}

		current := s.options.Controller.Status().DeviceIndex
		list := make([]models.DeviceInfo, 0, len(found))
		for _, d := range found {
			list = append(list, models.DeviceInfo{
				DeviceInfo: d,
				HighRes:    d.HighRes(),
				Pinned:     current != nil && *current == d.Index,
			})
		}
		return &models.DeviceResponse{
			Body: models.DeviceData{Devices: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-resolutions",
		Method:      http.MethodGet,
		Path:        "/api/resolutions",
		Summary:     "List Resolutions",
		Description: "Return the resolution catalog in index order",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ResolutionsResponse, error) {
		cat := s.options.Controller.Catalog()
		safe := cat.SafeIndices()

		entries := cat.Entries()
		out := make([]models.ResolutionEntry, len(entries))
		for i, e := range entries {
			out[i] = models.ResolutionEntry{
				Index:   i,
				Entry:   e,
				Default: i == cat.DefaultIndex(),
				Safe:    slices.Contains(safe, i),
			}
		}
		return &models.ResolutionsResponse{
			Body: models.ResolutionsData{Resolutions: out, DefaultIndex: cat.DefaultIndex()},
		}, nil
	})
}
