package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvtable/internal/table"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrStoreFull     = errors.New("table store is full")
)

type storeEntry struct {
	info       TableInfo
	table      *table.Table
	lastAccess time.Time
}

// Store keeps loaded tables in memory under UUID handles. Stored tables
// are treated as read-only.
type Store struct {
	maxTables int
	ttl       time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*storeEntry
}

// NewStore creates a store holding at most maxTables tables. Entries not
// read for ttl are removed by EvictExpired. A non-positive ttl keeps
// entries until deleted.
func NewStore(maxTables int, ttl time.Duration) *Store {
	return &Store{
		maxTables: maxTables,
		ttl:       ttl,
		now:       time.Now,
		entries:   make(map[string]*storeEntry),
	}
}

// Put stores t and returns its description.
func (s *Store) Put(t *table.Table, source string) (TableInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxTables > 0 && len(s.entries) >= s.maxTables {
		return TableInfo{}, fmt.Errorf("%w: %d tables", ErrStoreFull, len(s.entries))
	}

	now := s.now()
	info := TableInfo{
		ID:        uuid.New().String(),
		Name:      t.Name,
		Source:    source,
		Columns:   t.Columns(),
		Key:       t.Key(),
		Rows:      t.Len(),
		CreatedAt: now,
	}
	s.entries[info.ID] = &storeEntry{info: info, table: t, lastAccess: now}
	return info, nil
}

// Get returns a stored table and refreshes its expiry.
func (s *Store) Get(id string) (*table.Table, TableInfo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, TableInfo{}, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, TableInfo{}, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	e.lastAccess = s.now()
	return e.table, e.info, nil
}

// List returns every stored table, oldest first.
func (s *Store) List() []TableInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TableInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a table.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	delete(s.entries, id)
	return nil
}

// Len returns the number of stored tables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// EvictExpired removes entries not read within the TTL and returns how many
// were removed.
func (s *Store) EvictExpired() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}
