// Package customers wraps the private-endpoint side of the Varinode API:
// customers and their remote-backed address and card collections.
package customers

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"varinode/api"
	"varinode/pkg/logger"
)

// Entity is a remote-backed list member: addresses and cards.
type Entity interface {
	ID() string
	IsDefault() bool
	Save(ctx context.Context) error
	Delete(ctx context.Context) error
}

// CustomerHandle is anything that can produce a customer id.
type CustomerHandle interface {
	ID() string
}

// CustomerRef names a customer either by raw id or by handle. The zero
// value is empty and resolves to "".
type CustomerRef struct {
	id     string
	handle CustomerHandle
}

// ByID references a customer by raw id.
func ByID(id string) CustomerRef {
	return CustomerRef{id: id}
}

// ByHandle references a customer through an object that knows its id.
func ByHandle(h CustomerHandle) CustomerRef {
	return CustomerRef{handle: h}
}

// Resolve returns the customer id behind the reference.
func (r CustomerRef) Resolve() string {
	if r.id != "" {
		return r.id
	}
	if r.handle != nil {
		return r.handle.ID()
	}
	return ""
}

// List is a lazily loaded, dirty-tracked cache of a remote-backed entity
// collection. At most one load is in flight per instance; local add/remove
// mutate optimistically and mark the cache dirty so the next load refreshes
// from the remote.
type List[T Entity] struct {
	client  *api.Client
	name    string
	plural  string
	factory func(map[string]interface{}) T

	mu         sync.Mutex
	items      []T
	defaultIdx int
	dirty      bool
	loaded     bool
	customerID string

	sf singleflight.Group
}

// NewList builds a list cache for one entity kind. name and plural are the
// API naming of the entity ("address"/"addresses"); the factory constructs
// an entity from a remote record.
func NewList[T Entity](client *api.Client, name, plural, customerID string, factory func(map[string]interface{}) T) *List[T] {
	return &List[T]{
		client:     client,
		name:       name,
		plural:     plural,
		customerID: customerID,
		factory:    factory,
		defaultIdx: -1,
	}
}

// Len returns the current local item count.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Items returns a copy of the current local items.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Default returns the default item: the one flagged default remotely, or
// the first item. ok is false while the list is empty.
func (l *List[T]) Default() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	if l.defaultIdx < 0 || l.defaultIdx >= len(l.items) {
		return zero, false
	}
	return l.items[l.defaultIdx], true
}

// Load fetches the collection for a customer. A clean, already-loaded list
// is returned as-is. A failed remote load resolves to the current local
// list instead of an error so dependent flows are not blocked by a missing
// collection.
func (l *List[T]) Load(ctx context.Context, ref CustomerRef) ([]T, error) {
	l.mu.Lock()
	if l.loaded && !l.dirty {
		items := append([]T(nil), l.items...)
		l.mu.Unlock()
		return items, nil
	}
	customerID := ref.Resolve()
	if customerID == "" {
		customerID = l.customerID
	}
	l.mu.Unlock()

	if customerID == "" {
		return nil, nil
	}

	// Single-flight: concurrent loads share one remote call.
	out, err, _ := l.sf.Do("load", func() (interface{}, error) {
		return l.doLoad(ctx, customerID), nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]T), nil
}

func (l *List[T]) doLoad(ctx context.Context, customerID string) []T {
	resp, err := l.client.Call(ctx, l.plural+".getList", api.Params{
		"customer_id": customerID,
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil || !resp.Complete() {
		// Soft fail: the remote list being absent should not stall callers.
		l.client.Logger().Debug("list load soft-failed", logger.Fields{
			"plural": l.plural,
			"err":    err,
		})
		l.loaded = true
		l.dirty = false
		return append([]T(nil), l.items...)
	}

	l.items = l.items[:0]
	l.defaultIdx = -1
	for _, raw := range resp.Slice(l.plural) {
		record, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		item := l.factory(record)
		l.items = append(l.items, item)
		// First item is the fallback default; an explicit flag wins.
		if l.defaultIdx < 0 || item.IsDefault() {
			l.defaultIdx = len(l.items) - 1
		}
	}
	l.loaded = true
	l.dirty = false
	l.customerID = customerID
	return append([]T(nil), l.items...)
}

// Get returns the collection, loading it if needed. Concurrent callers
// share the in-flight load.
func (l *List[T]) Get(ctx context.Context) ([]T, error) {
	return l.Load(ctx, CustomerRef{})
}

// Add appends the item locally, marks the cache dirty and saves the item
// remotely. The local mutation is optimistic: a failed save does not roll
// it back. An item added to an empty list becomes the default.
func (l *List[T]) Add(ctx context.Context, item T) error {
	l.mu.Lock()
	if len(l.items) == 0 {
		l.defaultIdx = 0
	}
	l.items = append(l.items, item)
	l.dirty = true
	l.mu.Unlock()

	return item.Save(ctx)
}

// AddFields coerces a raw record into the entity type and adds it.
func (l *List[T]) AddFields(ctx context.Context, fields map[string]interface{}) (T, error) {
	item := l.factory(fields)
	return item, l.Add(ctx, item)
}

// Remove splices the item with the given id out of the local list, marks
// the cache dirty and deletes the item remotely. Removing a non-member is
// a no-op, not a failure.
func (l *List[T]) Remove(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	idx := -1
	for i, item := range l.items {
		if item.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false, nil
	}
	item := l.items[idx]
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	if l.defaultIdx == idx {
		l.defaultIdx = -1
		if len(l.items) > 0 {
			l.defaultIdx = 0
		}
	} else if l.defaultIdx > idx {
		l.defaultIdx--
	}
	l.dirty = true
	l.mu.Unlock()

	return true, item.Delete(ctx)
}

// Dirty reports whether local state may have diverged from the remote
// since the last successful reload.
func (l *List[T]) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}
