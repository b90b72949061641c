package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"activation-backend/internal/models"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is a process-local Store used when redis is disabled
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.data, true
}

func (m *Memory) set(key string, data []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
}

func (m *Memory) PutSession(ctx context.Context, s *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.set(fmt.Sprintf(sessionKeyFmt, s.ID), data, ttl)
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (*models.Session, error) {
	data, ok := m.get(fmt.Sprintf(sessionKeyFmt, id))
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, fmt.Sprintf(sessionKeyFmt, id))
	return nil
}

func (m *Memory) GetCached(ctx context.Context, key string) ([]byte, bool) {
	return m.get(key)
}

func (m *Memory) SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	m.set(key, data, ttl)
}

func (m *Memory) InvalidatePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if ok, err := path.Match(pattern, key); err != nil {
			return err
		} else if ok {
			delete(m.entries, key)
		}
	}
	return nil
}

var _ Store = (*Memory)(nil)
