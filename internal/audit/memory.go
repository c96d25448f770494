package audit

import (
	"context"
	"sync"

	"github.com/gocql/gocql"

	"shop_back_end/internal/models"
)

// MemorySink keeps the most recent entries in memory.
type MemorySink struct {
	mu       sync.Mutex
	entries  []models.AuditLog
	capacity int
}

func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = MaxLimit
	}
	return &MemorySink{capacity: capacity}
}

func (m *MemorySink) Record(_ context.Context, e models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = gocql.TimeUUID().String()
	}
	m.entries = append(m.entries, e)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[len(m.entries)-m.capacity:]
	}
	return nil
}

// List returns matching entries, newest first.
func (m *MemorySink) List(_ context.Context, q Query) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.AuditLog{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < q.limit(); i-- {
		e := m.entries[i]
		if !q.Day.IsZero() && dayKey(e.Timestamp) != dayKey(q.Day) {
			continue
		}
		if q.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
