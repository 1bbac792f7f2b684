// Package docstore holds the set of open documents as immutable values.
// A commit replaces a document's value atomically; nothing downstream
// ever observes a torn or partially updated document.
package docstore

import (
	"sync"

	"github.com/watlang/watls/internal/green"
	"github.com/watlang/watls/internal/intern"
	"github.com/watlang/watls/internal/parser"
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/text"
)

// Document is an immutable snapshot of one open file: its source bytes,
// the parse tree built from them, and a line index for LSP position
// conversion. A new Document value is built on every commit; nothing
// mutates one in place.
type Document struct {
	URI        intern.ID
	Version    int
	Source     []byte
	Root       *red.Node
	LineIndex  *text.LineIndex
	Diagnostics []parser.Result
}

// Store owns the open-document set. Callers never hold a reference into
// it across a Commit; Commit always installs a brand new *Document value
// for the URI.
type Store struct {
	mu   sync.RWMutex
	docs map[intern.ID]*Document
}

func New() *Store {
	return &Store{docs: make(map[intern.ID]*Document)}
}

// Commit replaces the document at uri with one parsed from text. It is
// the only way new content enters the store; range-based edits are the
// external collaborator's problem to resolve into a full text before
// calling this.
func (s *Store) Commit(uri string, src []byte) *Document {
	id := intern.URIs.Intern(uri)
	res := parser.Parse(src)
	root := res.Root

	doc := &Document{
		URI:       id,
		Source:    src,
		Root:      root,
		LineIndex: text.NewLineIndex(src),
	}

	s.mu.Lock()
	if prev, ok := s.docs[id]; ok {
		doc.Version = prev.Version + 1
	}
	doc.Diagnostics = []parser.Result{res}
	s.docs[id] = doc
	s.mu.Unlock()

	return doc
}

// Get returns the current document for uri, or nil if it has never been
// committed (or has been closed).
func (s *Store) Get(uri string) *Document {
	id, ok := lookupURI(uri)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[id]
}

// Close drops the document for uri; subsequent Get calls return nil
// until it is committed again.
func (s *Store) Close(uri string) {
	id, ok := lookupURI(uri)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
}

func lookupURI(uri string) (intern.ID, bool) {
	id := intern.URIs.Intern(uri)
	return id, true
}

// GreenRoot is a convenience accessor mirroring the spec's data-flow
// description: C6 owns the committed green root, everything else views
// it on demand through the red layer.
func (d *Document) GreenRoot() *green.Node {
	if d.Root == nil {
		return nil
	}
	return d.Root.Green()
}
