package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/jinzhu/copier"
)

var (
	ErrNotFound     = errors.New("memory entry not found")
	ErrInvalidScope = errors.New("invalid memory scope")
)

// Scope is the lifetime category of an entry.
type Scope int

const (
	// ScopeSession entries live as long as the session that wrote them.
	ScopeSession Scope = iota
	// ScopePersistent entries outlive sessions and may be backed by a
	// [DurableStore].
	ScopePersistent
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopePersistent:
		return "persistent"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// DurableStore is an external backend for persistent entries. Get must
// return an error matching [ErrNotFound] for missing keys.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// DurableClearer is implemented by backends that can drop every key they own
// in one call.
type DurableClearer interface {
	Clear(ctx context.Context) error
}

type partition struct {
	mu      sync.RWMutex
	entries map[string]any
}

func newPartition() *partition {
	return &partition{entries: map[string]any{}}
}

// Store is a scoped key/value context store.
//
// Each scope has its own lock: reads run concurrently, writes are serialised
// per scope. Stores derived with [Store.NewSession] share the persistent
// scope and get an independent session scope.
type Store struct {
	session    *partition
	persistent *partition
	durable    DurableStore
}

type Option func(*Store)

// WithDurableStore backs the persistent scope with d. Writes go through to d
// before they are cached, reads fall back to d on cache misses.
func WithDurableStore(d DurableStore) Option {
	return func(s *Store) { s.durable = d }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		session:    newPartition(),
		persistent: newPartition(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession returns a store with a fresh session scope that shares this
// store's persistent scope.
func (s *Store) NewSession() *Store {
	return &Store{
		session:    newPartition(),
		persistent: s.persistent,
		durable:    s.durable,
	}
}

func (s *Store) partition(scope Scope) (*partition, error) {
	switch scope {
	case ScopeSession:
		return s.session, nil
	case ScopePersistent:
		return s.persistent, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidScope, scope)
}

func (s *Store) Set(ctx context.Context, key string, value any, scope Scope) error {
	p, err := s.partition(scope)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return s.setLocked(ctx, p, key, value, scope)
}

func (s *Store) setLocked(ctx context.Context, p *partition, key string, value any, scope Scope) error {
	if scope == ScopePersistent && s.durable != nil {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %q for durable store: %w", key, err)
		}
		if err := traceDurable(ctx, "set", key, func(ctx context.Context) error {
			return s.durable.Set(ctx, key, encoded)
		}); err != nil {
			return fmt.Errorf("failed to write %q to durable store: %w", key, err)
		}
	}

	p.entries[key] = value
	return nil
}

func (s *Store) Get(ctx context.Context, key string, scope Scope) (any, error) {
	p, err := s.partition(scope)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	value, ok := p.entries[key]
	p.mu.RUnlock()
	if ok {
		return value, nil
	}

	if scope != ScopePersistent || s.durable == nil {
		return nil, fmt.Errorf("%w: %q in %v scope", ErrNotFound, key, scope)
	}

	value, err = s.loadDurable(ctx, key)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if cached, ok := p.entries[key]; ok {
		value = cached
	} else {
		p.entries[key] = value
	}
	p.mu.Unlock()
	return value, nil
}

func (s *Store) loadDurable(ctx context.Context, key string) (any, error) {
	var encoded []byte
	err := traceDurable(ctx, "get", key, func(ctx context.Context) error {
		var err error
		encoded, err = s.durable.Get(ctx, key)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %q in %v scope", ErrNotFound, key, ScopePersistent)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read %q from durable store: %w", key, err)
	}

	var value any
	if err := json.Unmarshal(encoded, &value); err != nil {
		return nil, fmt.Errorf("failed to decode %q from durable store: %w", key, err)
	}
	return value, nil
}

// Update atomically replaces the value of key with the result of fn. fn
// receives the current value and whether it exists, and runs with the scope's
// write lock held, so it must not call back into the store.
func (s *Store) Update(ctx context.Context, key string, scope Scope, fn func(current any, exists bool) any) error {
	p, err := s.partition(scope)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current, exists := p.entries[key]
	if !exists && scope == ScopePersistent && s.durable != nil {
		loaded, err := s.loadDurable(ctx, key)
		switch {
		case err == nil:
			current, exists = loaded, true
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}

	return s.setLocked(ctx, p, key, fn(current, exists), scope)
}

func (s *Store) Delete(ctx context.Context, key string, scope Scope) error {
	p, err := s.partition(scope)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if scope == ScopePersistent && s.durable != nil {
		if err := traceDurable(ctx, "delete", key, func(ctx context.Context) error {
			return s.durable.Delete(ctx, key)
		}); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete %q from durable store: %w", key, err)
		}
	}
	delete(p.entries, key)
	return nil
}

// Clear removes every entry of scope. Clearing the session scope never
// touches persistent entries.
//
// When the durable backend does not implement [DurableClearer], only keys
// known to this store are removed from it.
func (s *Store) Clear(ctx context.Context, scope Scope) error {
	p, err := s.partition(scope)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	if scope == ScopePersistent && s.durable != nil {
		if clearer, ok := s.durable.(DurableClearer); ok {
			errs = traceDurable(ctx, "clear", "", clearer.Clear)
		} else {
			for key := range p.entries {
				if err := traceDurable(ctx, "delete", key, func(ctx context.Context) error {
					return s.durable.Delete(ctx, key)
				}); err != nil && !errors.Is(err, ErrNotFound) {
					errs = errors.Join(errs, fmt.Errorf("failed to delete %q from durable store: %w", key, err))
				}
			}
		}
	}
	if errs != nil {
		logger.WarnContext(ctx, "durable store clear incomplete", "scope", scope.String(), "error", errs)
	}

	p.entries = map[string]any{}
	return errs
}

// Snapshot returns a deep copy of the cached entries of scope.
func (s *Store) Snapshot(scope Scope) map[string]any {
	p, err := s.partition(scope)
	if err != nil {
		return map[string]any{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := make(map[string]any, len(p.entries))
	if err := copier.CopyWithOption(&snapshot, p.entries, copier.Option{DeepCopy: true}); err != nil {
		maps.Copy(snapshot, p.entries)
	}
	return snapshot
}

func (s *Store) Len(scope Scope) int {
	p, err := s.partition(scope)
	if err != nil {
		return 0
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Lookup reads key and converts it to T. Values that come back from a
// durable backend are generic JSON, they are re-decoded into T.
func Lookup[T any](ctx context.Context, s *Store, key string, scope Scope) (T, error) {
	var zero T
	value, err := s.Get(ctx, key, scope)
	if err != nil {
		return zero, err
	}

	if typed, ok := value.(T); ok {
		return typed, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("failed to convert %q: %w", key, err)
	}
	var typed T
	if err := json.Unmarshal(encoded, &typed); err != nil {
		return zero, fmt.Errorf("failed to convert %q to %T: %w", key, zero, err)
	}
	return typed, nil
}
