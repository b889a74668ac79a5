package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Manager looks clips up in memory first and then on disk, promoting disk
// hits into memory.
type Manager struct {
	memory *Memory
	disk   *Disk

	mu         sync.Mutex
	promotions int64
}

// ManagerStats aggregates both levels.
type ManagerStats struct {
	Memory     Stats
	Disk       Stats
	Promotions int64
}

// Hits returns the lookups served by either level.
func (s ManagerStats) Hits() int64 {
	return s.Memory.Hits + s.Disk.Hits
}

// NewManager opens both cache levels. cfg.Dir is required.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: directory is required")
	}
	def := DefaultConfig()
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = def.MemoryCapacity
	}
	if cfg.DiskCapacity <= 0 {
		cfg.DiskCapacity = def.DiskCapacity
	}

	disk, err := NewDisk(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel, cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	return &Manager{
		memory: NewMemory(cfg.MemoryCapacity),
		disk:   disk,
	}, nil
}

// Get returns the clip for key from the fastest level holding it.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}

	if err := m.memory.Put(key, data); err == nil {
		m.mu.Lock()
		m.promotions++
		m.mu.Unlock()
	}
	return data, true
}

// Put stores the clip in both levels. A clip too large for one level is
// still stored in the other.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil {
		if errors.Is(err, ErrItemTooLarge) {
			log.Debug("Clip too large for disk cache", "key", key, "bytes", len(value))
			return nil
		}
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Stats returns counters for both levels.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	p := m.promotions
	m.mu.Unlock()

	return ManagerStats{
		Memory:     m.memory.Stats(),
		Disk:       m.disk.Stats(),
		Promotions: p,
	}
}

// Close flushes the disk index.
func (m *Manager) Close() error {
	if err := m.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}
