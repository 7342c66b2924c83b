package models

import (
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/devices"
)

// DeviceInfo is a capture node with its high-resolution hint.
type DeviceInfo struct {
	devices.DeviceInfo
	HighRes bool `json:"high_res" doc:"Device advertises at least 1920x1080"`
	Pinned  bool `json:"pinned" doc:"Device is the one the session is using"`
}

type DeviceData struct {
	Devices []DeviceInfo `json:"devices" doc:"Detected V4L2 capture nodes"`
	Count   int          `json:"count" example:"2" doc:"Number of devices found"`
}

type DeviceResponse struct {
	Body DeviceData
}

// ResolutionEntry is one catalog entry with its index.
type ResolutionEntry struct {
	Index int `json:"index" example:"11" doc:"Catalog index"`
	catalog.Entry
	Default bool `json:"default" doc:"Known-good entry used as the last restart resort"`
	Safe    bool `json:"safe" doc:"Entry is cycled through by a hard reset"`
}

type ResolutionsData struct {
	Resolutions  []ResolutionEntry `json:"resolutions" doc:"Resolution catalog in index order"`
	DefaultIndex int               `json:"default_index" example:"11" doc:"Known-good index"`
}

type ResolutionsResponse struct {
	Body ResolutionsData
}
