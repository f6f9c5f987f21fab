// pkg/schema/events.go
package schema

type ThumbnailStatus string

const (
	ThumbnailProcessed ThumbnailStatus = "processed"
	ThumbnailFailed    ThumbnailStatus = "failed"
)

type DerivationParams struct {
	SourceWidth  int    `json:"source_width"`
	SourceHeight int    `json:"source_height"`
	TargetWidth  int    `json:"target_width"`
	TargetHeight int    `json:"target_height"`
	Algorithm    string `json:"algorithm"`
	Format       string `json:"format,omitempty"`
}

type ThumbnailResult struct {
	Size             string            `json:"size"`
	Filename         string            `json:"filename,omitempty"`
	Width            int               `json:"width,omitempty"`
	Height           int               `json:"height,omitempty"`
	Status           ThumbnailStatus   `json:"status"`
	Error            string            `json:"error,omitempty"`
	DerivationParams *DerivationParams `json:"derivation_params,omitempty"`
}

// PhotoUploaded is published once an original is stored.
type PhotoUploaded struct {
	Filename         string            `json:"filename"`
	Title            string            `json:"title,omitempty"`
	Thumbnails       map[string]string `json:"thumbnails"`
	Results          []ThumbnailResult `json:"results,omitempty"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	HappenedAt       int64             `json:"happened_at"`
}

// PhotoDeleted is published after an original and its thumbnails were removed.
type PhotoDeleted struct {
	Filename   string   `json:"filename"`
	Removed    []string `json:"removed,omitempty"`
	HappenedAt int64    `json:"happened_at"`
}

// RegenerateRequested asks a worker to re-derive thumbnails for a photo.
type RegenerateRequested struct {
	PhotoID    int64 `json:"photo_id"`
	HappenedAt int64 `json:"happened_at"`
}

// ThumbnailsDone reports the outcome of a regenerate request.
type ThumbnailsDone struct {
	PhotoID          int64             `json:"photo_id"`
	Filename         string            `json:"filename,omitempty"`
	Thumbnails       map[string]string `json:"thumbnails"`
	TotalProcessed   int               `json:"total_processed"`
	TotalFailed      int               `json:"total_failed"`
	Results          []ThumbnailResult `json:"results,omitempty"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	Error            string            `json:"error,omitempty"`
	HappenedAt       int64             `json:"happened_at"`
}
