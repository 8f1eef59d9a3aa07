package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/csvtable/internal/config"
)

// ErrUnknownProfile is returned when a request names a profile that is not
// registered.
var ErrUnknownProfile = errors.New("unknown profile")

// Registry holds the named load/save profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]config.Profile
}

// NewRegistry creates a registry holding profiles.
func NewRegistry(profiles []config.Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]config.Profile, len(profiles))}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a profile. Names must be unique.
func (r *Registry) Register(p config.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.Name]; exists {
		return fmt.Errorf("profile already registered: %s", p.Name)
	}
	r.profiles[p.Name] = p
	return nil
}

// Get returns a profile by name.
// Returns false if not found.
func (r *Registry) Get(name string) (config.Profile, bool) {
	if r == nil {
		return config.Profile{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	return p, ok
}

// Resolve returns the named profile. An empty name yields the zero profile.
func (r *Registry) Resolve(name string) (config.Profile, error) {
	if name == "" {
		return config.Profile{}, nil
	}
	p, ok := r.Get(name)
	if !ok {
		return config.Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// All returns all profiles sorted by name.
func (r *Registry) All() []config.Profile {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]config.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
