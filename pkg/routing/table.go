package routing

import (
	"errors"
	"sync/atomic"
)

var (
	ErrEmptyPrefix = errors.New("routing: empty prefix")
	ErrNilHandler  = errors.New("routing: nil handler")
	ErrFrozen      = errors.New("routing: table is frozen")
)

type entry struct {
	prefix  string
	handler Handler
}

// Table is an ordered list of prefix registrations. Lookup is a linear scan
// and the first exact match wins, so registration order is priority order.
//
// A Table is filled once at startup and then frozen; lookups after Freeze are
// safe from any number of goroutines.
type Table struct {
	entries []entry
	frozen  atomic.Bool
}

func NewTable() *Table {
	return &Table{}
}

// Register appends prefix -> h. Bad input never adds an entry.
func (t *Table) Register(prefix string, h Handler) error {
	if t.frozen.Load() {
		return ErrFrozen
	}
	if prefix == "" {
		return ErrEmptyPrefix
	}
	if h == nil {
		return ErrNilHandler
	}
	t.entries = append(t.entries, entry{prefix: prefix, handler: h})
	return nil
}

// Lookup returns the handler of the first entry whose prefix equals prefix.
func (t *Table) Lookup(prefix string) (Handler, bool) {
	for _, e := range t.entries {
		if e.prefix == prefix {
			return e.handler, true
		}
	}
	return nil, false
}

// Freeze stops further registration.
func (t *Table) Freeze() {
	t.frozen.Store(true)
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Prefixes lists registered prefixes in registration order.
func (t *Table) Prefixes() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.prefix)
	}
	return out
}
