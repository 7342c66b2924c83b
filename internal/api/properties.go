package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/uvcctl/internal/api/models"
	"github.com/smazurov/uvcctl/internal/session"
)

func (s *Server) registerPropertyRoutes() {
	ctrl := s.options.Controller

	huma.Register(s.api, huma.Operation{
		OperationID: "list-properties",
		Method:      http.MethodGet,
		Path:        "/api/properties",
		Summary:     "List Properties",
		Description: "Read every property with its fallback values and probe verdict",
		Tags:        []string{"properties"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.PropertiesResponse, error) {
		views, err := ctrl.Properties()
		if err != nil {
			return nil, mapSessionError(err)
		}
		return &models.PropertiesResponse{Body: models.PropertiesData{Properties: views}}, nil
	})

	// A write that no identifier accepted still answers 200 so the caller
	// sees the attempt trail; Applied is false in that case.
	huma.Register(s.api, huma.Operation{
		OperationID: "set-property",
		Method:      http.MethodPut,
		Path:        "/api/properties/{name}",
		Summary:     "Set Property",
		Description: "Write a property through its fallback chain and report what the device accepted",
		Tags:        []string{"properties"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *models.PropertySetRequest) (*models.PropertySetResponse, error) {
		res, err := ctrl.SetProperty(input.Name, input.Body.Value)
		if err != nil && !errors.Is(err, session.ErrPropertyNotSettable) {
			return nil, mapSessionError(err)
		}
		return &models.PropertySetResponse{Body: res}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-property",
		Method:      http.MethodPost,
		Path:        "/api/properties/{name}/probe",
		Summary:     "Probe Property",
		Description: "Perturb the property, read it back after one frame and restore it",
		Tags:        []string{"properties"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *models.PropertyNameInput) (*models.PropertyProbeResponse, error) {
		res, err := ctrl.Probe(input.Name)
		if err != nil {
			return nil, mapSessionError(err)
		}
		return &models.PropertyProbeResponse{Body: res}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "probe-all-properties",
		Method:      http.MethodPost,
		Path:        "/api/properties/probe",
		Summary:     "Probe All Properties",
		Description: "Probe every property except frame rate",
		Tags:        []string{"properties"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.PropertyProbeAllResponse, error) {
		results, err := ctrl.ProbeAll()
		if err != nil {
			return nil, mapSessionError(err)
		}
		resp := &models.PropertyProbeAllResponse{}
		resp.Body.Results = results
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-presets",
		Method:      http.MethodPost,
		Path:        "/api/properties/presets",
		Summary:     "Apply Presets",
		Description: "Write several properties in registry order. Unknown names are reported, not fatal.",
		Tags:        []string{"properties"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, input *models.PresetsRequest) (*models.PresetsResponse, error) {
		results, err := ctrl.ApplyPresets(input.Body.Properties)
		if errors.Is(err, session.ErrSessionClosed) {
			return nil, mapSessionError(err)
		}
		resp := &models.PresetsResponse{}
		resp.Body.Results = results
		if err != nil {
			resp.Body.Errors = splitJoined(err)
		}
		return resp, nil
	})
}

// splitJoined flattens an errors.Join result into messages.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
