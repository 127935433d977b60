package binder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/binder"
	"github.com/dshills/mvpkit/internal/dispatcher"
	"github.com/dshills/mvpkit/internal/event"
	"github.com/dshills/mvpkit/internal/gesture"
)

var (
	doc       = action.NewFactory("Doc")
	docSave   = doc.Action("Save")
	docClose  = doc.Action("Close")
	docRename = doc.Action("Rename")
)

func TestEnablementFollowsPredicate(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	dirty := false
	if err := d.Register(docSave, func(context.Context) error { return nil }, func() bool { return dirty }); err != nil {
		t.Fatalf("register: %v", err)
	}

	a, bt := binder.NewSignal("toolbar"), binder.NewSignal("menu")
	b := binder.New()
	if err := b.Add(docSave, a, bt); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Bind(d); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if a.Enabled() || bt.Enabled() {
		t.Fatal("both triggers should start disabled")
	}

	dirty = true
	d.RaiseCanExecuteChanged()
	if !a.Enabled() || !bt.Enabled() {
		t.Error("both triggers should be enabled after the predicate flips")
	}

	dirty = false
	d.RaiseCanExecuteChanged()
	if a.Enabled() || bt.Enabled() {
		t.Error("both triggers should be disabled again")
	}
}

func TestUnrelatedTriggersUntouched(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	can := false
	_ = d.Register(docSave, func(context.Context) error { return nil }, func() bool { return can })
	_ = d.Register(docClose, func(context.Context) error { return nil }, nil)

	save, closeBtn := binder.NewSignal("save"), binder.NewSignal("close")
	b := binder.New()
	_ = b.Add(docSave, save)
	_ = b.Add(docClose, closeBtn)
	_ = b.Bind(d)
	d.RaiseCanExecuteChanged()

	closeBtn.SetEnabled(false)
	can = true
	d.RaiseCanExecuteChanged()

	if !save.Enabled() {
		t.Error("save should be enabled")
	}
	if closeBtn.Enabled() {
		t.Error("close did not change state and must not be touched")
	}
}

func TestUnregisteredActionDisabled(t *testing.T) {
	d := dispatcher.NewWithDefaults()

	var reported []error
	sig := binder.NewSignal("rename")
	b := binder.New(binder.WithErrorHandler(func(id action.Identity, err error) {
		if id != docRename {
			t.Errorf("unexpected action %v", id)
		}
		reported = append(reported, err)
	}))
	_ = b.Add(docRename, sig)
	_ = b.Bind(d)

	if sig.Enabled() {
		t.Error("trigger for an unregistered action must be disabled")
	}

	sig.SetEnabled(true)
	sig.Activate(context.Background(), nil)
	if len(reported) != 1 || !errors.Is(reported[0], dispatcher.ErrUnknownAction) {
		t.Errorf("expected one ErrUnknownAction report, got %v", reported)
	}
}

func TestActivationDispatches(t *testing.T) {
	d := dispatcher.NewWithDefaults()

	var got []string
	_ = dispatcher.RegisterParameterized(d, docRename, func(_ context.Context, name string) error {
		got = append(got, name)
		return nil
	}, nil)

	sig := binder.NewSignal("rename")
	b := binder.New()
	_ = b.Add(docRename, sig)
	_ = b.Bind(d)

	sig.Activate(context.Background(), "draft.txt")
	sig.Activate(context.Background(), "final.txt")

	if diff := cmp.Diff([]string{"draft.txt", "final.txt"}, got); diff != "" {
		t.Errorf("dispatched payloads mismatch (-want +got):\n%s", diff)
	}
}

func TestActivationBeforeBindIgnored(t *testing.T) {
	sig := binder.NewSignal("save")
	b := binder.New()
	_ = b.Add(docSave, sig)

	if sig.Listeners() != 0 {
		t.Error("unbound binder must not subscribe to triggers")
	}
}

func TestBindTwice(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	b := binder.New()

	if err := b.Bind(nil); !errors.Is(err, binder.ErrNilTarget) {
		t.Errorf("expected ErrNilTarget, got %v", err)
	}
	if err := b.Bind(d); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := b.Bind(d); !errors.Is(err, binder.ErrAlreadyBound) {
		t.Errorf("expected ErrAlreadyBound, got %v", err)
	}
	if !b.IsBound() {
		t.Error("binder should report bound")
	}
}

func TestAddValidation(t *testing.T) {
	b := binder.New()
	if err := b.Add(docSave, nil); !errors.Is(err, binder.ErrNilTrigger) {
		t.Errorf("expected ErrNilTrigger, got %v", err)
	}
	if err := b.Add(action.Identity{}, binder.NewSignal("x")); !errors.Is(err, binder.ErrZeroAction) {
		t.Errorf("expected ErrZeroAction, got %v", err)
	}
}

func TestAddAfterBindWiresImmediately(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	calls := 0
	_ = d.Register(docSave, func(context.Context) error { calls++; return nil }, nil)

	b := binder.New()
	_ = b.Bind(d)

	sig := binder.NewSignal("late")
	sig.SetEnabled(false)
	_ = b.Add(docSave, sig)

	if !sig.Enabled() {
		t.Error("late trigger should receive current enablement")
	}
	sig.Activate(context.Background(), nil)
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBindCorrectsDriftedPredicate(t *testing.T) {
	tests := []struct {
		name string
		wire func(b *binder.Binder, d *dispatcher.Dispatcher, sig *binder.Signal) error
	}{
		{
			name: "add then bind",
			wire: func(b *binder.Binder, d *dispatcher.Dispatcher, sig *binder.Signal) error {
				if err := b.Add(docSave, sig); err != nil {
					return err
				}
				return b.Bind(d)
			},
		},
		{
			name: "bind then add",
			wire: func(b *binder.Binder, d *dispatcher.Dispatcher, sig *binder.Signal) error {
				if err := b.Bind(d); err != nil {
					return err
				}
				return b.Add(docSave, sig)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := dispatcher.NewWithDefaults()
			t.Cleanup(d.Close)
			can := true
			if err := d.Register(docSave, func(context.Context) error { return nil }, func() bool { return can }); err != nil {
				t.Fatalf("register: %v", err)
			}
			d.RaiseCanExecuteChanged()

			// The predicate drifts from the last broadcast before the trigger is wired.
			can = false
			sig := binder.NewSignal("save")
			if err := tt.wire(binder.New(), d, sig); err != nil {
				t.Fatalf("wire: %v", err)
			}
			if sig.Enabled() {
				t.Fatal("trigger should start disabled")
			}

			can = true
			d.RaiseCanExecuteChanged()
			if !sig.Enabled() {
				t.Error("trigger should follow the predicate back to enabled")
			}

			can = false
			d.RaiseCanExecuteChanged()
			if sig.Enabled() {
				t.Error("trigger should be disabled again")
			}
		})
	}
}

func TestAddPairsAndMap(t *testing.T) {
	b := binder.New()
	s1, s2, s3 := binder.NewSignal("1"), binder.NewSignal("2"), binder.NewSignal("3")

	_ = b.AddPairs(
		binder.Pair{Action: docSave, Trigger: s1},
		binder.Pair{Action: docSave, Trigger: s2},
	)
	_ = b.AddMap(map[action.Identity][]binder.Trigger{docClose: {s3}})

	got := make(map[string]int)
	for id, n := range b.Bindings() {
		got[id.String()] = n
	}
	want := map[string]int{"Doc.Save": 2, "Doc.Close": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}

	triggers := b.Triggers(docSave)
	if len(triggers) != 2 || triggers[0] != s1 || triggers[1] != s2 {
		t.Errorf("triggers out of order: %v", triggers)
	}

	// Re-adding a trigger moves it.
	_ = b.Add(docClose, s1)
	if got := b.Bindings()[docSave]; got != 1 {
		t.Errorf("expected 1 trigger left on Doc.Save, got %d", got)
	}
}

func TestRemove(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	calls := 0
	_ = d.Register(docSave, func(context.Context) error { calls++; return nil }, nil)

	sig := binder.NewSignal("save")
	b := binder.New()
	_ = b.Add(docSave, sig)
	_ = b.Bind(d)

	if !b.Remove(sig) {
		t.Fatal("Remove should report the trigger was bound")
	}
	if b.Remove(sig) {
		t.Error("second Remove should report false")
	}
	sig.Activate(context.Background(), nil)
	if calls != 0 {
		t.Error("removed trigger must not dispatch")
	}
}

func TestUnbindDetaches(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	calls := 0
	can := true
	_ = d.Register(docSave, func(context.Context) error { calls++; return nil }, func() bool { return can })

	sig := binder.NewSignal("save")
	b := binder.New()
	_ = b.Add(docSave, sig)
	_ = b.Bind(d)
	b.Unbind()

	sig.Activate(context.Background(), nil)
	if calls != 0 {
		t.Error("unbound trigger must not drive the dispatcher")
	}
	if sig.Listeners() != 0 {
		t.Errorf("expected no activation listeners, got %d", sig.Listeners())
	}

	can = false
	d.RaiseCanExecuteChanged()
	if !sig.Enabled() {
		t.Error("unbound trigger must not follow state broadcasts")
	}

	// Rebinding restores both directions.
	if err := b.Bind(d); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if sig.Enabled() {
		t.Error("rebind should push current enablement")
	}
}

func TestClose(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	sig := binder.NewSignal("save")
	b := binder.New()
	_ = b.Add(docSave, sig)
	_ = b.Bind(d)

	b.Close()
	b.Close()

	if sig.Listeners() != 0 {
		t.Error("closed binder must release triggers")
	}
	if err := b.Add(docSave, sig); !errors.Is(err, binder.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := b.Bind(d); !errors.Is(err, binder.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestExplicitAndImplicitExecuteOnce(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	calls := 0
	_ = d.Register(docSave, func(context.Context) error { calls++; return nil }, nil)

	sig := binder.NewSignal("save")
	b := binder.New()
	_ = b.Add(docSave, sig)
	_ = b.Bind(d)

	// The Presenter forwards every request itself as well.
	var statuses []dispatcher.Status
	b.OnActionRequested(func(r binder.Request) {
		res, err := d.DispatchGesture(context.Background(), r.Action, r.Gesture, r.Payload)
		if err != nil {
			t.Errorf("forward: %v", err)
		}
		statuses = append(statuses, res.Status)
	})

	sig.Activate(context.Background(), nil)
	sig.Activate(context.Background(), nil)

	if calls != 2 {
		t.Errorf("expected one execution per activation, got %d", calls)
	}
	if diff := cmp.Diff([]dispatcher.Status{dispatcher.StatusExecuted, dispatcher.StatusExecuted}, statuses); diff != "" {
		t.Errorf("forwarded statuses (-want +got):\n%s", diff)
	}
}

func TestRequestsOnAggregator(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	calls := 0
	_ = d.Register(docSave, func(context.Context) error { calls++; return nil }, nil)

	agg := event.New()
	var seen []binder.Request
	_, _ = event.Subscribe(agg, func(ctx context.Context, r binder.Request) error {
		seen = append(seen, r)
		_, err := d.Dispatch(ctx, r.Action, r.Payload)
		return err
	})

	sig := binder.NewSignal("save")
	b := binder.New(binder.WithAggregator(agg))
	_ = b.Add(docSave, sig)
	_ = b.Bind(d)

	sig.Activate(context.Background(), nil)

	if len(seen) != 1 || seen[0].Action != docSave || seen[0].Gesture.IsZero() {
		t.Fatalf("unexpected requests %+v", seen)
	}
	if calls != 1 {
		t.Errorf("expected exactly one execution, got %d", calls)
	}
}

func TestGestureFromContextReused(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	calls := 0
	_ = d.Register(docSave, func(context.Context) error { calls++; return nil }, nil)

	menu, key := binder.NewSignal("menu"), binder.NewSignal("ctrl+s")
	b := binder.New()
	_ = b.Add(docSave, menu, key)
	_ = b.Bind(d)

	// One physical gesture surfacing through two triggers.
	src := gesture.NewSource()
	ctx := gesture.WithToken(context.Background(), src.Next())
	menu.Activate(ctx, nil)
	key.Activate(ctx, nil)

	if calls != 1 {
		t.Errorf("expected 1 execution for one gesture, got %d", calls)
	}
}

func TestRequestListenerCancel(t *testing.T) {
	d := dispatcher.NewWithDefaults()
	_ = d.Register(docSave, func(context.Context) error { return nil }, nil)

	sig := binder.NewSignal("save")
	b := binder.New()
	_ = b.Add(docSave, sig)
	_ = b.Bind(d)

	n := 0
	cancel := b.OnActionRequested(func(binder.Request) { n++ })
	sig.Activate(context.Background(), nil)
	cancel()
	cancel()
	sig.Activate(context.Background(), nil)

	if n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestSignalDisabledIgnoresActivation(t *testing.T) {
	sig := binder.NewSignal("x")
	fired := 0
	cancel := sig.OnActivate(func(context.Context, any) { fired++ })
	defer cancel()

	sig.SetEnabled(false)
	if sig.Activate(context.Background(), nil) {
		t.Error("disabled signal should refuse activation")
	}
	sig.SetEnabled(true)
	if !sig.Activate(context.Background(), nil) {
		t.Error("enabled signal should accept activation")
	}
	if fired != 1 {
		t.Errorf("expected 1 activation, got %d", fired)
	}
	if sig.Name() != "x" {
		t.Errorf("unexpected name %q", sig.Name())
	}
}
