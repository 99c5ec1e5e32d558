package memory

import (
	"sync"
	"time"

	"docqa/internal/domain"
)

// ShortTerm holds per-session ring buffers of recent exchanges. Buffers
// are independent; one mutex serializes mutations so FIFO order within a
// session is preserved under concurrent requests.
type ShortTerm struct {
	mu       sync.RWMutex
	capacity int
	sessions map[string][]domain.Exchange
	now      func() time.Time
}

func NewShortTerm(capacity int) *ShortTerm {
	if capacity <= 0 {
		capacity = 20
	}
	return &ShortTerm{
		capacity: capacity,
		sessions: make(map[string][]domain.Exchange),
		now:      time.Now,
	}
}

// Append records one exchange for the session, evicting the oldest entry
// once the buffer exceeds capacity.
func (m *ShortTerm) Append(sessionID, query, answer, interactionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := append(m.sessions[sessionID], domain.Exchange{
		Query:         query,
		Answer:        answer,
		InteractionID: interactionID,
		At:            m.now(),
	})
	if len(buf) > m.capacity {
		buf = buf[len(buf)-m.capacity:]
	}
	m.sessions[sessionID] = buf
}

// RecentContext returns the session's buffered exchanges, oldest first.
// The returned slice is a copy.
func (m *ShortTerm) RecentContext(sessionID string) []domain.Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf := m.sessions[sessionID]
	if len(buf) == 0 {
		return nil
	}
	out := make([]domain.Exchange, len(buf))
	copy(out, buf)
	return out
}

// EvictStale removes whole sessions whose oldest entry is older than
// maxAge and reports how many were dropped.
func (m *ShortTerm) EvictStale(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, buf := range m.sessions {
		if len(buf) > 0 && buf[0].At.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// ActiveSessions returns the number of sessions currently buffered.
func (m *ShortTerm) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
