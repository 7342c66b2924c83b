package models

import (
	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/properties"
)

type PropertyNameInput struct {
	Name string `path:"name" example:"gain" doc:"Property name, case-insensitive"`
}

type PropertiesData struct {
	Properties []control.PropertyView `json:"properties" doc:"Every property in registry order"`
}

type PropertiesResponse struct {
	Body PropertiesData
}

type PropertySetRequest struct {
	PropertyNameInput
	Body struct {
		Value float64 `json:"value" example:"50" doc:"Requested value"`
	}
}

type PropertySetResponse struct {
	Body properties.Result
}

type PropertyProbeResponse struct {
	Body properties.ProbeResult
}

type PropertyProbeAllResponse struct {
	Body struct {
		Results []properties.ProbeResult `json:"results" doc:"One probe per property, frame rate excluded"`
	}
}

type PresetsRequest struct {
	Body struct {
		Properties map[string]float64 `json:"properties" doc:"Property name to value"`
	}
}

type PresetsResponse struct {
	Body struct {
		Results []properties.Result `json:"results" doc:"Writes in registry order"`
		Errors  []string            `json:"errors,omitempty" doc:"Unknown names and failed writes"`
	}
}
