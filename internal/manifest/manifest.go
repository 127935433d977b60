// Package manifest loads trigger binding manifests.
//
// A manifest names, for each action identity, the triggers that fire it:
//
//	[bindings]
//	"Doc.Save" = ["toolbar.save", "menu.file.save"]
//	"Doc.Close" = ["menu.file.close"]
//
// The same document in YAML:
//
//	bindings:
//	  Doc.Save: [toolbar.save, menu.file.save]
//	  Doc.Close: [menu.file.close]
//
// Trigger names are resolved by the View through a Lookup function, so the
// manifest never references concrete widgets.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/binder"
)

// Format is a manifest encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Errors returned by manifest operations.
var (
	ErrUnsupportedFormat = errors.New("manifest: unsupported format")
	ErrEmptyTrigger      = errors.New("manifest: empty trigger name")
)

// Manifest maps action identity strings to trigger names.
type Manifest struct {
	Bindings map[string][]string `toml:"bindings" yaml:"bindings"`
}

// Lookup resolves a trigger name to a trigger.
type Lookup func(name string) (binder.Trigger, bool)

// FormatOf returns the format implied by path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest and checks that every trigger name is non-empty.
func Parse(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	for id, names := range m.Bindings {
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("%w for %s", ErrEmptyTrigger, id)
			}
		}
	}
	return &m, nil
}

// Actions returns the bound action identities sorted by name.
func (m *Manifest) Actions() []action.Identity {
	keys := m.sortedKeys()
	out := make([]action.Identity, len(keys))
	for i, k := range keys {
		out[i] = action.Parse(k)
	}
	return out
}

// Pairs resolves every trigger name through lookup. Pairs are ordered by
// action string, then by the order names appear in the manifest. Names that
// lookup cannot resolve are returned separately, in the same order.
func (m *Manifest) Pairs(lookup Lookup) ([]binder.Pair, []string) {
	var pairs []binder.Pair
	var unresolved []string
	for _, key := range m.sortedKeys() {
		id := action.Parse(key)
		for _, name := range m.Bindings[key] {
			t, ok := lookup(name)
			if !ok || t == nil {
				unresolved = append(unresolved, name)
				continue
			}
			pairs = append(pairs, binder.Pair{Action: id, Trigger: t})
		}
	}
	return pairs, unresolved
}

// Apply adds the manifest's resolvable bindings to b and returns the names
// it could not resolve.
func (m *Manifest) Apply(b *binder.Binder, lookup Lookup) ([]string, error) {
	pairs, unresolved := m.Pairs(lookup)
	if err := b.AddPairs(pairs...); err != nil {
		return unresolved, err
	}
	return unresolved, nil
}

// Reconcile makes b reflect m after prev was applied: triggers named by prev
// but not by m are removed, then m is applied.
func (m *Manifest) Reconcile(b *binder.Binder, prev *Manifest, lookup Lookup) ([]string, error) {
	if prev != nil {
		keep := make(map[string]bool)
		for _, names := range m.Bindings {
			for _, name := range names {
				keep[name] = true
			}
		}
		for _, names := range prev.Bindings {
			for _, name := range names {
				if keep[name] {
					continue
				}
				if t, ok := lookup(name); ok && t != nil {
					b.Remove(t)
				}
			}
		}
	}
	return m.Apply(b, lookup)
}

func (m *Manifest) sortedKeys() []string {
	keys := make([]string, 0, len(m.Bindings))
	for k := range m.Bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
