package api

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type AddClipRequest struct {
	Path string `json:"path"`
}

type MoveClipRequest struct {
	Delta int `json:"delta"`
}

type IndexResponse struct {
	Index int `json:"index"`
}

// MusicRequest updates the music bed. Omitted fields keep their value; an
// empty path removes the bed.
type MusicRequest struct {
	Path *string  `json:"path"`
	Gain *float64 `json:"gain"`
}

type ExportRequest struct {
	Output string `json:"output"`
}
