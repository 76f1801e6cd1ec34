package progress

// StorageKey fixed key the pending update list is persisted under
const StorageKey = "offline_progress_updates"

// Update is one pending progress record for a material or lesson element.
// At most one update exists per resource, a newer record replaces the
// older one wholesale
type Update struct {
	ResourceID       string  `json:"resource_id"`
	ProgressPercent  float64 `json:"progress_percent"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
	Timestamp        string  `json:"timestamp"` // RFC3339
	Synced           bool    `json:"synced"`
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampSeconds(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
