package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryConfig configures a MemoryStorage.
type MemoryConfig struct {
	// MaxBytes caps the total size of all stored responses.
	// Zero means unlimited.
	MaxBytes int64

	// Now returns the current time used for Response.StoredAt.
	// Default: time.Now
	Now func() time.Time
}

// MemoryStorage is an in-memory Storage implementation.
type MemoryStorage struct {
	mu         sync.RWMutex
	partitions map[string]*memoryPartition
	used       int64
	config     MemoryConfig
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage(config ...MemoryConfig) *MemoryStorage {
	var cfg MemoryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MemoryStorage{
		partitions: make(map[string]*memoryPartition),
		config:     cfg,
	}
}

// Open returns the named partition, creating it on first use.
func (s *MemoryStorage) Open(_ context.Context, name string) (Partition, error) {
	if err := ValidatePartitionName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[name]
	if !ok {
		p = &memoryPartition{
			name:    name,
			storage: s,
			entries: make(map[string]*Response),
		}
		s.partitions[name] = p
	}
	return p, nil
}

// Has reports whether the named partition exists.
func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.partitions[name]
	s.mu.RUnlock()
	return ok, nil
}

// Delete removes the named partition and all its entries.
// Returns false when the partition did not exist.
func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	p, ok := s.partitions[name]
	delete(s.partitions, name)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}

	// Lock order is partition then storage (see Put), so the storage lock is
	// released before the partition is drained.
	p.mu.Lock()
	var freed int64
	for _, resp := range p.entries {
		freed += resp.Size()
	}
	p.entries = make(map[string]*Response)
	p.dropped = true
	p.mu.Unlock()

	_ = s.reserve(-freed)
	return true, nil
}

// Names returns the existing partition names in sorted order.
func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.partitions))
	for name := range s.partitions {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

// UsedBytes returns the total size of stored responses.
func (s *MemoryStorage) UsedBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// reserve accounts for a size change of delta bytes, failing when the quota
// would be exceeded.
func (s *MemoryStorage) reserve(delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delta > 0 && s.config.MaxBytes > 0 && s.used+delta > s.config.MaxBytes {
		return ErrQuotaExceeded
	}
	s.used += delta
	return nil
}

type memoryPartition struct {
	name    string
	storage *MemoryStorage

	mu      sync.RWMutex
	entries map[string]*Response
	dropped bool
}

func (p *memoryPartition) Name() string {
	return p.name
}

func (p *memoryPartition) Match(_ context.Context, key string) (*Response, bool) {
	p.mu.RLock()
	resp, ok := p.entries[key]
	p.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return resp.Clone(), true
}

func (p *memoryPartition) Put(_ context.Context, key string, resp *Response) error {
	if resp == nil {
		return ErrNilResponse
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	stored := resp.Clone()
	if stored.StoredAt.IsZero() {
		stored.StoredAt = p.storage.config.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A handle kept across Storage.Delete must not resurrect the partition.
	if p.dropped {
		return ErrInvalidPartition
	}

	var delta int64 = stored.Size()
	if prev, ok := p.entries[key]; ok {
		delta -= prev.Size()
	}
	if err := p.storage.reserve(delta); err != nil {
		return err
	}

	p.entries[key] = stored
	return nil
}

func (p *memoryPartition) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.entries[key]
	if !ok {
		return nil
	}
	delete(p.entries, key)
	_ = p.storage.reserve(-prev.Size())
	return nil
}

func (p *memoryPartition) Keys(_ context.Context) ([]string, error) {
	p.mu.RLock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	p.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)
