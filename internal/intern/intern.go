// Package intern hash-conses strings into small opaque handles so that
// equality and hashing on identifiers and URIs become O(1) integer
// operations instead of string comparisons. Handles are stable for the
// lifetime of the process; interning has no teardown.
package intern

import "sync"

// ID is an opaque handle produced by a Table. The zero value never
// identifies an interned string.
type ID uint32

// Table interns strings to IDs and back. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	byText  map[string]ID
	byID    []string
}

// New returns an empty table. Index 0 is reserved so the zero ID can mean
// "absent" in call sites that store IDs in maps.
func New() *Table {
	return &Table{
		byText: make(map[string]ID),
		byID:   []string{""},
	}
}

// Intern returns the handle for s, assigning a fresh one if s hasn't been
// seen before.
func (t *Table) Intern(s string) ID {
	t.mu.RLock()
	if id, ok := t.byText[s]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byText[s]; ok {
		return id
	}
	id := ID(len(t.byID))
	t.byID = append(t.byID, s)
	t.byText[s] = id
	return id
}

// Lookup reverses Intern, returning the original string for a handle
// produced by this table, or ("", false) if id is unknown.
func (t *Table) Lookup(id ID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) <= 0 || int(id) >= len(t.byID) {
		return "", false
	}
	return t.byID[id], true
}

// MustLookup is Lookup without the ok return, for call sites that hold an
// ID they know came from this table.
func (t *Table) MustLookup(id ID) string {
	s, _ := t.Lookup(id)
	return s
}

// Len reports how many distinct strings have been interned.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID) - 1
}

// Idents is the process-wide interner for wat identifiers ("$name").
var Idents = New()

// URIs is the process-wide interner for document URIs.
var URIs = New()
