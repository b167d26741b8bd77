package assistant

import (
	"sync"

	"github.com/pathakanu/assistant/internal/model"
)

// historyStore keeps the most recent commands per user.
type historyStore struct {
	mu      sync.RWMutex
	size    int
	entries map[string][]model.HistoryEntry
}

func newHistoryStore(size int) *historyStore {
	return &historyStore{
		size:    size,
		entries: make(map[string][]model.HistoryEntry),
	}
}

func (h *historyStore) Add(user string, entry model.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := append(h.entries[user], entry)
	if len(list) > h.size {
		list = append([]model.HistoryEntry(nil), list[len(list)-h.size:]...)
	}
	h.entries[user] = list
}

func (h *historyStore) Recent(user string) []model.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.entries[user]
	out := make([]model.HistoryEntry, len(list))
	copy(out, list)
	return out
}
