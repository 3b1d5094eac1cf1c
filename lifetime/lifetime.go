// Package lifetime wraps externally owned values that must be released
// exactly once.
//
// A Lifetime is the primitive underneath engine handles and scratch buffers.
// It never finalizes anything on its own: a lifetime that is never disposed
// leaks whatever it wraps.
package lifetime

import (
	"github.com/wippyai/jsvm/errors"
)

// Kind distinguishes how a lifetime releases its value.
type Kind uint8

const (
	// Owned lifetimes run their disposer on Dispose.
	Owned Kind = iota
	// Static lifetimes wrap process-constant values and never die.
	Static
	// Borrowed lifetimes wrap values owned by someone else for a bounded
	// scope. Dispose releases nothing but ends the scope.
	Borrowed
)

func (k Kind) String() string {
	switch k {
	case Owned:
		return "owned"
	case Static:
		return "static"
	case Borrowed:
		return "borrowed"
	}
	return "unknown"
}

// Disposer releases the wrapped value.
type Disposer[T any] func(T) error

// Lifetime holds one value of type T tagged with an owner of type O.
type Lifetime[T, O any] struct {
	value    T
	owner    O
	disposer Disposer[T]
	kind     Kind
	alive    bool
}

// New wraps value in an owned lifetime. disposer may be nil.
func New[T, O any](value T, disposer Disposer[T], owner O) *Lifetime[T, O] {
	return &Lifetime[T, O]{
		value:    value,
		owner:    owner,
		disposer: disposer,
		kind:     Owned,
		alive:    true,
	}
}

// NewStatic wraps a process-constant value. The result has the zero owner,
// is always alive and ignores Dispose.
func NewStatic[T, O any](value T) *Lifetime[T, O] {
	return &Lifetime[T, O]{
		value: value,
		kind:  Static,
		alive: true,
	}
}

// NewBorrowed wraps a value whose storage belongs to someone else for the
// duration of a scope. Dispose only marks the lifetime dead.
func NewBorrowed[T, O any](value T, owner O) *Lifetime[T, O] {
	return &Lifetime[T, O]{
		value: value,
		owner: owner,
		kind:  Borrowed,
		alive: true,
	}
}

// Alive reports whether the value may still be read.
func (l *Lifetime[T, O]) Alive() bool {
	return l != nil && l.alive
}

// Kind returns the lifetime variant.
func (l *Lifetime[T, O]) Kind() Kind {
	return l.kind
}

// Value returns the wrapped value, or errors.ErrDisposed once disposed.
func (l *Lifetime[T, O]) Value() (T, error) {
	if !l.Alive() {
		var zero T
		return zero, errors.Disposed(l.describe())
	}
	return l.value, nil
}

// Owner returns the owner tag. It stays readable after disposal.
func (l *Lifetime[T, O]) Owner() O {
	return l.owner
}

// Dispose releases the value. Disposal is strictly one-shot: a second call
// fails with errors.ErrDisposed and does not run the disposer again. Static
// lifetimes ignore Dispose.
func (l *Lifetime[T, O]) Dispose() error {
	if l == nil {
		return errors.Disposed("nil lifetime")
	}
	if l.kind == Static {
		return nil
	}
	if !l.alive {
		return errors.Disposed(l.describe())
	}
	l.alive = false
	if l.kind == Borrowed || l.disposer == nil {
		return nil
	}
	d := l.disposer
	l.disposer = nil
	return d(l.value)
}

// Consume passes the lifetime to fn and disposes it afterwards, returning
// fn's result. A disposal failure is reported only when fn succeeded.
func Consume[T, O, R any](l *Lifetime[T, O], fn func(*Lifetime[T, O]) (R, error)) (R, error) {
	res, err := fn(l)
	if l.Alive() {
		if derr := l.Dispose(); derr != nil && err == nil {
			err = derr
		}
	}
	return res, err
}

func (l *Lifetime[T, O]) describe() string {
	if l == nil {
		return "nil lifetime"
	}
	return l.kind.String() + " lifetime"
}
