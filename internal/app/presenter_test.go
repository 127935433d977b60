package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/mvpkit/internal/app"
	"github.com/dshills/mvpkit/internal/dispatcher"
	"github.com/dshills/mvpkit/internal/event"
	"github.com/dshills/mvpkit/internal/event/schedule"
	"github.com/dshills/mvpkit/internal/logging"
)

type fixture struct {
	doc   *app.Document
	disp  *dispatcher.Dispatcher
	agg   *event.Aggregator
	p     *app.DocumentPresenter
	quits int
}

func newFixture(t *testing.T, doc *app.Document, ui schedule.Scheduler) *fixture {
	t.Helper()
	f := &fixture{
		doc:  doc,
		disp: dispatcher.NewWithDefaults(),
		agg:  event.New(),
	}
	f.p = app.NewDocumentPresenter(doc, f.disp, f.agg, ui, logging.NewNop(), func() { f.quits++ })
	if err := f.p.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	t.Cleanup(f.disp.Close)
	return f
}

func (f *fixture) can(t *testing.T) map[string]bool {
	t.Helper()
	got := make(map[string]bool)
	for _, id := range f.disp.Actions() {
		ok, err := f.disp.CanExecute(id)
		if err != nil {
			t.Fatalf("can execute %s: %v", id, err)
		}
		got[id.String()] = ok
	}
	return got
}

func TestPresenterExecutability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	f := newFixture(t, app.NewDocument(path, nil), schedule.Inline())
	ctx := context.Background()

	want := map[string]bool{
		"App.Quit":      true,
		"Doc.Backspace": false,
		"Doc.Close":     true,
		"Doc.Edit":      true,
		"Doc.Save":      false,
	}
	if diff := cmp.Diff(want, f.can(t)); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.disp.Dispatch(ctx, app.ActionEdit, "hi"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	want["Doc.Backspace"] = true
	want["Doc.Close"] = false
	want["Doc.Save"] = true
	if diff := cmp.Diff(want, f.can(t)); diff != "" {
		t.Errorf("dirty state mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.disp.Dispatch(ctx, app.ActionSave, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	want["Doc.Close"] = true
	want["Doc.Save"] = false
	if diff := cmp.Diff(want, f.can(t)); diff != "" {
		t.Errorf("saved state mismatch (-want +got):\n%s", diff)
	}
}

func TestPresenterBroadcastsChanges(t *testing.T) {
	f := newFixture(t, app.NewDocument(filepath.Join(t.TempDir(), "a.txt"), nil), schedule.Inline())

	var changes []dispatcher.StateChange
	cancel := f.disp.OnStateChanged(func(c dispatcher.StateChange) { changes = append(changes, c) })
	defer cancel()

	if _, err := f.disp.Dispatch(context.Background(), app.ActionEdit, "x"); err != nil {
		t.Fatal(err)
	}
	got := make(map[string]bool)
	for _, c := range changes {
		got[c.Action.String()] = c.Executable
	}
	want := map[string]bool{"Doc.Save": true, "Doc.Backspace": true, "Doc.Close": false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestPresenterPublishesMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	f := newFixture(t, app.NewDocument(path, nil), schedule.Inline())
	ctx := context.Background()

	var edits []app.DocumentEdited
	var saves []app.DocumentSaved
	if _, err := event.Subscribe(f.agg, func(_ context.Context, m app.DocumentEdited) error {
		edits = append(edits, m)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := event.Subscribe(f.agg, func(_ context.Context, m app.DocumentSaved) error {
		saves = append(saves, m)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.disp.Dispatch(ctx, app.ActionEdit, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.disp.Dispatch(ctx, app.ActionBackspace, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.disp.Dispatch(ctx, app.ActionSave, nil); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]app.DocumentEdited{{Length: 3}, {Length: 2}}, edits); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]app.DocumentSaved{{Path: path, Bytes: 2}}, saves); diff != "" {
		t.Errorf("saves mismatch (-want +got):\n%s", diff)
	}
}

func TestPresenterSaveFailure(t *testing.T) {
	f := newFixture(t, app.NewDocument("", nil), schedule.Inline())
	ctx := context.Background()

	var failed []app.DocumentSaveFailed
	if _, err := event.Subscribe(f.agg, func(_ context.Context, m app.DocumentSaveFailed) error {
		failed = append(failed, m)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.disp.Dispatch(ctx, app.ActionEdit, "x"); err != nil {
		t.Fatal(err)
	}
	res, err := f.disp.Dispatch(ctx, app.ActionSave, nil)
	if !errors.Is(err, app.ErrNoPath) {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
	if res.Status != dispatcher.StatusFailed {
		t.Errorf("expected failed status, got %v", res.Status)
	}
	if len(failed) != 1 || !errors.Is(failed[0].Err, app.ErrNoPath) {
		t.Errorf("expected one save failure message, got %+v", failed)
	}
}

func TestPresenterEditRejectsWrongPayload(t *testing.T) {
	f := newFixture(t, app.NewDocument("", nil), schedule.Inline())
	_, err := f.disp.Dispatch(context.Background(), app.ActionEdit, 42)
	if !errors.Is(err, dispatcher.ErrPayloadMismatch) {
		t.Errorf("expected payload mismatch, got %v", err)
	}
	if f.doc.Len() != 0 {
		t.Error("document should be unchanged")
	}
}

func TestPresenterCloseAndQuit(t *testing.T) {
	f := newFixture(t, app.NewDocument("", nil), schedule.Inline())
	ctx := context.Background()

	if _, err := f.disp.Dispatch(ctx, app.ActionEdit, "x"); err != nil {
		t.Fatal(err)
	}
	res, err := f.disp.Dispatch(ctx, app.ActionClose, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != dispatcher.StatusNotExecutable || f.quits != 0 {
		t.Fatalf("close with unsaved changes: status %v quits %d", res.Status, f.quits)
	}

	res, err = f.disp.Dispatch(ctx, app.ActionQuit, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != dispatcher.StatusExecuted || f.quits != 1 {
		t.Errorf("quit: status %v quits %d", res.Status, f.quits)
	}
}

func TestAutosave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto.txt")
	ui := schedule.NewLoop()
	f := newFixture(t, app.NewDocument(path, nil), ui)

	saved := make(chan app.DocumentSaved, 4)
	if _, err := event.Subscribe(f.agg, func(_ context.Context, m app.DocumentSaved) error {
		saved <- m
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.disp.Dispatch(context.Background(), app.ActionEdit, "draft"); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var changes []dispatcher.StateChange
	cancelListen := f.disp.OnStateChanged(func(c dispatcher.StateChange) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	defer cancelListen()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.p.Autosave(ctx, 5*time.Millisecond)
	}()

	select {
	case m := <-saved:
		if diff := cmp.Diff(app.DocumentSaved{Path: path, Bytes: 5, Auto: true}, m); diff != "" {
			t.Errorf("autosave message mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("autosave did not run")
	}
	cancel()
	<-done

	if f.doc.Dirty() {
		t.Error("expected clean document after autosave")
	}

	// The refresh is queued for the UI loop rather than run in the background.
	mu.Lock()
	before := len(changes)
	mu.Unlock()
	if before != 0 {
		t.Fatalf("expected no broadcasts before the UI loop runs, got %d", before)
	}
	if n := ui.RunPending(context.Background()); n == 0 {
		t.Fatal("expected a queued refresh")
	}
	got := make(map[string]bool)
	for _, c := range changes {
		got[c.Action.String()] = c.Executable
	}
	want := map[string]bool{"Doc.Save": false, "Doc.Close": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("refresh changes mismatch (-want +got):\n%s", diff)
	}
}

func TestAutosaveFromUIContextQueuesUIDelivery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto.txt")
	ui := schedule.NewLoop()
	f := newFixture(t, app.NewDocument(path, nil), ui)

	saved := make(chan struct{}, 4)
	if _, err := event.Subscribe(f.agg, func(context.Context, app.DocumentSaved) error {
		saved <- struct{}{}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	var onUI atomic.Int32
	if _, err := event.Subscribe(f.agg, func(ctx context.Context, _ app.DocumentSaved) error {
		if !ui.Within(ctx) {
			t.Error("UI subscriber ran off the UI loop")
		}
		onUI.Add(1)
		return nil
	}, event.OnScheduler(ui)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.disp.Dispatch(context.Background(), app.ActionEdit, "draft"); err != nil {
		t.Fatal(err)
	}

	// Autosave is started with the context UI handlers receive.
	ctx, cancel := context.WithCancel(schedule.MarkWithin(context.Background(), ui))
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.p.Autosave(ctx, 5*time.Millisecond)
	}()
	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("autosave did not run")
	}
	cancel()
	<-done

	if n := onUI.Load(); n != 0 {
		t.Fatalf("UI subscriber ran on the autosave goroutine %d times", n)
	}
	ui.RunPending(context.Background())
	if n := onUI.Load(); n != 1 {
		t.Errorf("expected one UI delivery, got %d", n)
	}
}

func TestAutosaveDisabled(t *testing.T) {
	f := newFixture(t, app.NewDocument(filepath.Join(t.TempDir(), "a.txt"), nil), schedule.Inline())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.p.Autosave(context.Background(), 0)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("autosave with zero interval should return immediately")
	}
}
