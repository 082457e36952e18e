package memory

import "sync"

// Memory is a bounded transcript of recent events, oldest first
type Memory struct {
	entries  []string
	capacity int
	mu       sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		entries:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

// GetAllMessages returns a copy of all entries in memory
func (m *Memory) GetAllMessages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := make([]string, len(m.entries))
	copy(messages, m.entries)
	return messages
}

// Recent returns a copy of the last n entries
func (m *Memory) Recent(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.entries) {
		n = len(m.entries)
	}
	if n <= 0 {
		return nil
	}
	messages := make([]string, n)
	copy(messages, m.entries[len(m.entries)-n:])
	return messages
}

// Store appends an entry, evicting the oldest one once capacity is reached
func (m *Memory) Store(data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, data)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[len(m.entries)-m.capacity:]
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}
