package securestore

import (
	"context"
	"sync"
)

// Memory is a process-local Store with fault injection, used in tests and
// when SECURE_STORE=memory.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	putErr error
	puts   int
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// FailGet makes subsequent Get calls fail with err wrapped in ErrStorage.
// A nil err clears the fault.
func (m *Memory) FailGet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// FailPut makes subsequent Put calls fail with err wrapped in ErrStorage.
func (m *Memory) FailPut(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// Puts returns the number of successful Put calls.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return wrap("put", m.putErr)
	}
	m.data[key] = payload
	m.puts++
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	m.mu.Lock()
	if m.getErr != nil {
		err := m.getErr
		m.mu.Unlock()
		return false, wrap("get", err)
	}
	payload, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := decode(payload, dst); err != nil {
		return false, err
	}
	return true, nil
}
