package model

const (
	BatchStatusCreated   = "created"
	BatchStatusRunning   = "running"
	BatchStatusSucceeded = "succeeded"
	BatchStatusFailed    = "failed"
)

// BatchTerminal reports whether status is a terminal batch state.
func BatchTerminal(status string) bool {
	return status == BatchStatusSucceeded || status == BatchStatusFailed
}

// BatchTransitionAllowed reports whether a batch may move from one status to
// another. Transitions are monotonic: created -> running -> terminal, and a
// terminal state never changes again.
func BatchTransitionAllowed(from, to string) bool {
	switch from {
	case BatchStatusCreated:
		return to == BatchStatusRunning || to == BatchStatusSucceeded || to == BatchStatusFailed
	case BatchStatusRunning:
		return to == BatchStatusSucceeded || to == BatchStatusFailed
	default:
		return false
	}
}

type BatchJob struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	DocumentID string            `json:"document_id"`
	Status     string            `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Processed  int               `json:"processed"`
	Total      int               `json:"total"`
	Error      string            `json:"error,omitempty"`
	Ctime      int64             `json:"ctime"`
	Mtime      int64             `json:"mtime"`
}
