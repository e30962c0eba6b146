package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/beatroom/models"
)

// MemoryStore keeps the newest records in process memory.
type MemoryStore struct {
	mutex    sync.RWMutex
	records  []models.RoundRecord
	capacity int
	closed   bool
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) SaveRound(ctx context.Context, record *models.RoundRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	r := *record
	r.PlayerIDs = append([]string(nil), record.PlayerIDs...)
	m.records = append(m.records, r)
	if over := len(m.records) - m.capacity; over > 0 {
		m.records = append(m.records[:0:0], m.records[over:]...)
	}
	return nil
}

func (m *MemoryStore) RecentRounds(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	if limit < 1 {
		return nil, ErrBadLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	out := make([]models.RoundRecord, 0, min(limit, len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}
