package resource

import (
	"errors"
	"sort"
)

var ErrClosed = errors.New("resource table closed")

// Table maps monotonically increasing handles to values of type T.
// Handles are never reused, so a stale handle can never resolve to a newer
// entry. A Table is not safe for concurrent use.
type Table[T any] struct {
	entries   map[Handle]T
	observers []Observer
	last      Handle
	closed    bool
}

// NewTable creates an empty table whose first handle is 1.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries: make(map[Handle]T),
	}
}

// Insert adds a value and returns its handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	if t.closed {
		return 0, ErrClosed
	}
	t.last++
	h := t.last
	t.entries[h] = value

	t.notify(Event{
		Type:   EventCreated,
		Handle: h,
		Value:  value,
	})
	return h, nil
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(handle Handle) (T, bool) {
	v, ok := t.entries[handle]
	return v, ok
}

// Remove drops an entry and returns (value, true) if found.
func (t *Table[T]) Remove(handle Handle) (T, bool) {
	value, ok := t.entries[handle]
	if !ok {
		var zero T
		return zero, false
	}
	delete(t.entries, handle)

	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Value:  value,
	})
	return value, true
}

// Last returns the most recently issued handle, or 0 if none was issued.
func (t *Table[T]) Last() Handle {
	return t.last
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	return len(t.entries)
}

// Each visits live entries in handle order until fn returns false.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	for _, h := range t.handles() {
		v, ok := t.entries[h]
		if !ok {
			continue
		}
		if !fn(h, v) {
			return
		}
	}
}

// Clear drops all entries in handle order.
func (t *Table[T]) Clear() {
	for _, h := range t.handles() {
		t.Remove(h)
	}
}

// Close drops all entries and stops accepting inserts.
func (t *Table[T]) Close() error {
	t.Clear()
	t.closed = true
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table[T]) Unsubscribe(o Observer) {
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table[T]) handles() []Handle {
	hs := make([]Handle, 0, len(t.entries))
	for h := range t.entries {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

func (t *Table[T]) notify(e Event) {
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
