package storage

import (
	"sort"
	"sync"
)

// MemorySink keeps generated files in memory, for tests and dry runs.
type MemorySink struct {
	mu     sync.RWMutex
	files  map[string][]byte
	writes map[string]int
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		files:  make(map[string][]byte),
		writes: make(map[string]int),
	}
}

// WriteFile stores a copy of content under name, replacing any earlier one.
func (m *MemorySink) WriteFile(name string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[name] = append([]byte(nil), content...)
	m.writes[name]++
	return nil
}

// Get returns the latest content written under name.
func (m *MemorySink) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[name]
	return content, ok
}

// Files returns the stored names, sorted.
func (m *MemorySink) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Writes returns how many times name was written.
func (m *MemorySink) Writes(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.writes[name]
}
