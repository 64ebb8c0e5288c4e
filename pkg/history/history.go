// Package history keeps the bounded conversation log exchanged between the
// model and the human. Entries are immutable once appended; when the log is
// full the oldest entry is evicted.
package history

import (
	"sync"
	"time"
)

// DefaultMaxSize is the log capacity used when none is configured.
const DefaultMaxSize = 1000

type Direction string

const (
	DirectionOutbound Direction = "llm_to_human"
	DirectionInbound  Direction = "human_to_llm"
)

type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"type"`
	Text      string    `json:"message"`
	MessageID int       `json:"message_id,omitempty"`
}

// Store is safe for concurrent use; Append is a single serialized operation
// across all producers, so log order is real-time arrival order.
type Store struct {
	mu      sync.Mutex
	entries []Message
	max     int
}

func NewStore(max int) *Store {
	if max <= 0 {
		max = DefaultMaxSize
	}
	return &Store{
		entries: make([]Message, 0, max),
		max:     max,
	}
}

func (s *Store) Append(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == s.max {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:s.max-1]
	}
	s.entries = append(s.entries, m)
}

// Recent returns a copy of the most recent limit entries in chronological
// order, plus the total number of entries held. A limit of zero or below
// returns everything.
func (s *Store) Recent(limit int) ([]Message, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.entries)
	if limit <= 0 || limit > total {
		limit = total
	}

	out := make([]Message, limit)
	copy(out, s.entries[total-limit:])
	return out, total
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}
