package model

// HistoryEntry is one processed command as echoed back to clients.
type HistoryEntry struct {
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
}
