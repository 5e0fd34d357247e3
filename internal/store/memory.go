package store

import (
	"maps"
	"sync"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

// Memory is an in-memory store for testing
type Memory struct {
	mu       sync.RWMutex
	cells    map[spreadsheet.CellAddress]string
	metadata map[string]string
}

// NewMemory creates a new in-memory store
func NewMemory() *Memory {
	return &Memory{
		cells:    make(map[spreadsheet.CellAddress]string),
		metadata: make(map[string]string),
	}
}

func (m *Memory) Get(addr spreadsheet.CellAddress) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.cells[addr]
	return text, ok, nil
}

func (m *Memory) Put(addr spreadsheet.CellAddress, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if text == "" {
		delete(m.cells, addr)
		return nil
	}
	m.cells[addr] = text
	return nil
}

func (m *Memory) Delete(addr spreadsheet.CellAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cells, addr)
	return nil
}

func (m *Memory) All() (map[spreadsheet.CellAddress]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.cells), nil
}

func (m *Memory) Replace(cells map[spreadsheet.CellAddress]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells = make(map[spreadsheet.CellAddress]string, len(cells))
	for addr, text := range cells {
		if text != "" {
			m.cells[addr] = text
		}
	}
	return nil
}

func (m *Memory) GetMetadata(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key], nil
}

func (m *Memory) SetMetadata(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
	return nil
}

// Close is a no-op for memory store
func (m *Memory) Close() error {
	return nil
}
