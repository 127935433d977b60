package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Document is an editable text file. It is safe for concurrent use; the
// autosaver saves from a background goroutine while the UI edits.
type Document struct {
	mu    sync.Mutex
	path  string
	name  string
	text  strings.Builder
	dirty bool
}

// NewDocument creates a document for path with the given content.
func NewDocument(path string, content []byte) *Document {
	name := filepath.Base(path)
	if path == "" {
		name = "Untitled"
	}
	d := &Document{path: path, name: name}
	d.text.Write(content)
	return d
}

// OpenDocument reads path. A missing file yields an empty document that will
// be created on first save.
func OpenDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewDocument(path, data), nil
}

// Path returns the file path, or "" for a scratch document.
func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// Name returns the display name.
func (d *Document) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Text returns the current content.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text.String()
}

// Len returns the content length in bytes.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text.Len()
}

// Dirty reports unsaved changes.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// Append adds s to the end of the document.
func (d *Document) Append(s string) {
	if s == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text.WriteString(s)
	d.dirty = true
}

// Backspace removes the last rune.
func (d *Document) Backspace() {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.text.String()
	if s == "" {
		return
	}
	r := []rune(s)
	d.text.Reset()
	d.text.WriteString(string(r[:len(r)-1]))
	d.dirty = true
}

// Save writes the document and returns the number of bytes written.
func (d *Document) Save() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.path == "" {
		return 0, ErrNoPath
	}
	data := d.text.String()
	if err := os.WriteFile(d.path, []byte(data), 0o644); err != nil {
		return 0, fmt.Errorf("save %s: %w", d.path, err)
	}
	d.dirty = false
	return len(data), nil
}
