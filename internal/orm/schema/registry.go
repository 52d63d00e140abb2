package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/conduit-lang/docmap/internal/orm/enums"
)

// Registry manages named document schemas and enum types, for models declared outside Go code
type Registry struct {
	schemas map[string]*DocumentSchema
	enums   map[string]*enums.Type
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*DocumentSchema),
		enums:   make(map[string]*enums.Type),
	}
}

// Register validates and registers a document schema under its name
func (r *Registry) Register(s *DocumentSchema) error {
	if err := Validate(s); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", s.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("schema %s is already registered", s.Name)
	}
	r.schemas[s.Name] = s
	return nil
}

// RegisterEnum registers an enum type under its name
func (r *Registry) RegisterEnum(t *enums.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.enums[t.Name]; exists {
		return fmt.Errorf("enum %s is already registered", t.Name)
	}
	r.enums[t.Name] = t
	return nil
}

// Get retrieves a document schema by name
func (r *Registry) Get(name string) (*DocumentSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.schemas[name]
	return s, exists
}

// Enum retrieves an enum type by name
func (r *Registry) Enum(name string) (*enums.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.enums[name]
	return t, exists
}

// List returns the names of all registered schemas, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemas)
}
