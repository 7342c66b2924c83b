package models

type SnapshotData struct {
	Path   string `json:"path" example:"/var/lib/uvcctl/1737973800.jpg" doc:"Written JPEG"`
	Width  int    `json:"width" example:"1920" doc:"Image width"`
	Height int    `json:"height" example:"1080" doc:"Image height"`
}

type SnapshotResponse struct {
	Body SnapshotData
}
