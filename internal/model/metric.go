package model

// RetrievalMetric is one observation of a context query, recorded through the
// metrics sink.
type RetrievalMetric struct {
	Fingerprint string `json:"fingerprint"`
	UserID      string `json:"user_id"`
	HubArea     string `json:"hub_area,omitempty"`
	Source      string `json:"source"`
	ResultCount int    `json:"result_count"`
	DurationMs  int64  `json:"duration_ms"`
	Ctime       int64  `json:"ctime"`
}
