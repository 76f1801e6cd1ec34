package submission

// Status per-interaction submission state
type Status string

// submission state machine: idle -> loading -> {success, offline, error}.
// success auto-reverts to idle, offline and error stick until the next attempt
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Params identify the target element and the answer payload
type Params struct {
	ElementID        string      `json:"element_id" validate:"required"`
	LessonID         string      `json:"lesson_id" validate:"required"`
	GraphID          string      `json:"graph_id"`
	GraphLessonID    string      `json:"graph_lesson_id"`
	Answer           interface{} `json:"answer" validate:"required"`
	Progress         float64     `json:"progress"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
}

// Result outcome of one submission attempt.
// Cached means the write was accepted into the local queue rather than
// confirmed by the server, a terminal state distinct from Success
type Result struct {
	Success bool   `json:"success"`
	Cached  bool   `json:"cached"`
	Error   string `json:"error,omitempty"`
}

// State snapshot exposed to the UI
type State struct {
	Status       Status `json:"status"`
	Error        string `json:"error,omitempty"`
	PendingCount int    `json:"pending_count"`
}
