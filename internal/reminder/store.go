package reminder

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Reminder is a one-shot, user-owned notification due at Target.
type Reminder struct {
	ID     string    `json:"id"`
	User   string    `json:"user"`
	Text   string    `json:"text"`
	Target time.Time `json:"target"`
	Active bool      `json:"active"`

	// seq identifies which Set call produced the record so a watcher can tell
	// when its id has been overwritten by a newer reminder.
	seq uint64
}

// Store keeps pending reminders in memory. All access goes through its methods.
type Store struct {
	mu    sync.RWMutex
	items map[string]*Reminder
	seq   uint64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]*Reminder)}
}

// Create parses timeText, computes the next matching instant after now and
// stores the reminder. A reminder with the same user and target minute is replaced.
func (s *Store) Create(user, text, timeText string, now time.Time) (Reminder, error) {
	tod, err := ParseTimeOfDay(timeText)
	if err != nil {
		return Reminder{}, err
	}

	target := NextOccurrence(now, tod)
	rem := &Reminder{
		ID:     reminderID(user, target),
		User:   user,
		Text:   text,
		Target: target,
		Active: true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rem.seq = s.seq
	s.items[rem.ID] = rem
	return *rem, nil
}

// Get returns the reminder stored under id.
func (s *Store) Get(id string) (Reminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rem, ok := s.items[id]
	if !ok {
		return Reminder{}, false
	}
	return *rem, true
}

// FindByText returns the earliest reminder whose text contains fragment,
// ignoring case. An empty scope searches every user's reminders.
func (s *Store) FindByText(scope, fragment string) (Reminder, bool) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return Reminder{}, false
	}
	for _, rem := range s.List(scope) {
		if strings.Contains(strings.ToLower(rem.Text), needle) {
			return rem, true
		}
	}
	return Reminder{}, false
}

// List returns stored reminders ordered by target time. An empty user lists all of them.
func (s *Store) List(user string) []Reminder {
	s.mu.RLock()
	out := make([]Reminder, 0, len(s.items))
	for _, rem := range s.items {
		if user == "" || rem.User == user {
			out = append(out, *rem)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Target.Equal(out[j].Target) {
			return out[i].ID < out[j].ID
		}
		return out[i].Target.Before(out[j].Target)
	})
	return out
}

// Cancel deactivates and removes the reminder. It reports whether id was present.
func (s *Store) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.items[id]
	if !ok {
		return false
	}
	rem.Active = false
	delete(s.items, id)
	return true
}

// Delete removes id. Missing ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Len reports how many reminders are pending.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

type pollResult int

const (
	pollWaiting pollResult = iota
	pollFiring
	pollStopped
)

// poll evaluates one watcher step. When the reminder is due it is removed
// under the same lock so a racing Cancel either wins outright or reports false.
func (s *Store) poll(id string, seq uint64, now time.Time) (Reminder, pollResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rem, ok := s.items[id]
	if !ok || rem.seq != seq || !rem.Active {
		return Reminder{}, pollStopped
	}
	if now.Before(rem.Target) {
		return Reminder{}, pollWaiting
	}
	delete(s.items, id)
	return *rem, pollFiring
}

func reminderID(user string, target time.Time) string {
	return user + "_" + target.Format("20060102_1504")
}
