package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/binder"
	"github.com/dshills/mvpkit/internal/manifest"
)

const tomlManifest = `
[bindings]
"Doc.Save" = ["toolbar.save", "menu.file.save"]
"Doc.Close" = ["menu.file.close", "missing.widget"]
`

const yamlManifest = `
bindings:
  Doc.Save: [toolbar.save, menu.file.save]
  Doc.Close: [menu.file.close, missing.widget]
`

func widgets() (map[string]*binder.Signal, manifest.Lookup) {
	m := map[string]*binder.Signal{
		"toolbar.save":    binder.NewSignal("toolbar.save"),
		"menu.file.save":  binder.NewSignal("menu.file.save"),
		"menu.file.close": binder.NewSignal("menu.file.close"),
	}
	return m, func(name string) (binder.Trigger, bool) {
		s, ok := m[name]
		return s, ok
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format manifest.Format
	}{
		{"toml", tomlManifest, manifest.FormatTOML},
		{"yaml", yamlManifest, manifest.FormatYAML},
	}

	want := map[string][]string{
		"Doc.Save":  {"toolbar.save", "menu.file.save"},
		"Doc.Close": {"menu.file.close", "missing.widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := manifest.Parse([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(want, m.Bindings); diff != "" {
				t.Errorf("bindings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := manifest.Parse([]byte("[bindings\n"), manifest.FormatTOML); err == nil {
		t.Error("expected TOML syntax error")
	}
	if _, err := manifest.Parse(nil, manifest.Format("ini")); !errors.Is(err, manifest.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := manifest.Parse([]byte("[bindings]\n\"Doc.Save\" = [\"\"]\n"), manifest.FormatTOML); !errors.Is(err, manifest.ErrEmptyTrigger) {
		t.Errorf("expected ErrEmptyTrigger, got %v", err)
	}
	if _, err := manifest.FormatOf("bindings.json"); !errors.Is(err, manifest.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPairsDeterministic(t *testing.T) {
	m, err := manifest.Parse([]byte(tomlManifest), manifest.FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	_, lookup := widgets()

	pairs, unresolved := m.Pairs(lookup)

	type pair struct{ action, trigger string }
	var got []pair
	for _, p := range pairs {
		got = append(got, pair{p.Action.String(), p.Trigger.(*binder.Signal).Name()})
	}
	want := []pair{
		{"Doc.Close", "menu.file.close"},
		{"Doc.Save", "toolbar.save"},
		{"Doc.Save", "menu.file.save"},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(pair{})); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"missing.widget"}, unresolved); diff != "" {
		t.Errorf("unresolved mismatch (-want +got):\n%s", diff)
	}

	ids := m.Actions()
	if len(ids) != 2 || ids[0] != action.New("Doc", "Close") || ids[1] != action.New("Doc", "Save") {
		t.Errorf("unexpected actions %v", ids)
	}
}

func TestApplyAndReconcile(t *testing.T) {
	first, _ := manifest.Parse([]byte(tomlManifest), manifest.FormatTOML)
	second, _ := manifest.Parse([]byte(`
[bindings]
"Doc.Save" = ["toolbar.save"]
"Doc.Close" = ["menu.file.save"]
`), manifest.FormatTOML)

	_, lookup := widgets()
	b := binder.New()

	unresolved, err := first.Apply(b, lookup)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(unresolved) != 1 {
		t.Errorf("expected 1 unresolved name, got %v", unresolved)
	}

	if _, err := second.Reconcile(b, first, lookup); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got := make(map[string]int)
	for id, n := range b.Bindings() {
		got[id.String()] = n
	}
	want := map[string]int{"Doc.Save": 1, "Doc.Close": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bindings after reconcile (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.yaml")
	if err := os.WriteFile(path, []byte(yamlManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Bindings) != 2 {
		t.Errorf("expected 2 actions, got %d", len(m.Bindings))
	}

	if _, err := manifest.Load(filepath.Join(dir, "absent.toml")); err == nil {
		t.Error("expected error for missing manifest")
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.toml")
	if err := os.WriteFile(path, []byte(tomlManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *manifest.Manifest, 4)
	w, err := manifest.NewWatcher(path, func(m *manifest.Manifest, err error) {
		if err != nil {
			t.Errorf("reload: %v", err)
			return
		}
		changes <- m
	}, manifest.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Close()

	if err := w.Start(); !errors.Is(err, manifest.ErrWatcherStarted) {
		t.Errorf("expected ErrWatcherStarted, got %v", err)
	}

	if err := os.WriteFile(path, []byte("[bindings]\n\"Doc.Save\" = [\"toolbar.save\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-changes:
		if diff := cmp.Diff(map[string][]string{"Doc.Save": {"toolbar.save"}}, m.Bindings); diff != "" {
			t.Errorf("reloaded bindings (-want +got):\n%s", diff)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}
	if w.Reloads() == 0 {
		t.Error("expected reload count to advance")
	}
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.toml")
	if err := os.WriteFile(path, []byte(tomlManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan struct{}, 4)
	w, err := manifest.NewWatcher(path, func(*manifest.Manifest, error) { changes <- struct{}{} },
		manifest.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
		t.Error("change to a sibling file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindings.toml")
	w, err := manifest.NewWatcher(path, func(*manifest.Manifest, error) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := w.Start(); !errors.Is(err, manifest.ErrWatcherClosed) {
		t.Errorf("expected ErrWatcherClosed, got %v", err)
	}

	if _, err := manifest.NewWatcher(path, nil); err == nil {
		t.Error("expected error for nil callback")
	}
	if _, err := manifest.NewWatcher("bindings.ini", func(*manifest.Manifest, error) {}); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
