package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store. Records older than ttl are dropped on
// read and on every save.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	lock    sync.RWMutex
	records map[string]Record
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]Record),
	}
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	rec.UpdatedAt = now
	m.records[rec.ID] = cloneRecord(rec)
	for id, r := range m.records {
		if m.expired(r, now) {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	rec, ok := m.records[id]
	if !ok || m.expired(rec, m.now()) {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) expired(rec Record, now time.Time) bool {
	return m.ttl > 0 && now.Sub(rec.UpdatedAt) > m.ttl
}

func cloneRecord(rec Record) Record {
	if rec.Result != nil {
		rec.Result = append([]byte(nil), rec.Result...)
	}
	return rec
}
