package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mvpkit/internal/binder"
	"github.com/dshills/mvpkit/internal/event"
	"github.com/dshills/mvpkit/internal/event/schedule"
	"github.com/dshills/mvpkit/internal/tui"
)

// Trigger names usable in a binding manifest.
const (
	TriggerSave      = "toolbar.save"
	TriggerClose     = "toolbar.close"
	TriggerQuit      = "toolbar.quit"
	TriggerBackspace = "key.backspace"
)

// DocumentView renders the toolbar, the document text and a status line.
// It holds no reference to the presenter.
type DocumentView struct {
	title   string
	buttons []*tui.Button
	byName  map[string]*tui.Button

	// Fields below are only touched on the UI goroutine.
	text   string
	status string

	scope *event.Scope
}

// NewDocumentView creates the view and its buttons.
func NewDocumentView(title string) *DocumentView {
	v := &DocumentView{
		title:  title,
		byName: make(map[string]*tui.Button),
		scope:  event.NewScope(),
	}
	v.addButton(TriggerSave, tui.NewButton("Save", tui.WithKey(tcell.KeyCtrlS)), true)
	v.addButton(TriggerClose, tui.NewButton("Close", tui.WithKey(tcell.KeyCtrlW)), true)
	v.addButton(TriggerQuit, tui.NewButton("Quit", tui.WithKey(tcell.KeyCtrlQ)), true)
	v.addButton(TriggerBackspace, tui.NewButton("Backspace", tui.WithKey(tcell.KeyBackspace2)), false)
	return v
}

func (v *DocumentView) addButton(name string, b *tui.Button, visible bool) {
	v.byName[name] = b
	if visible {
		v.buttons = append(v.buttons, b)
	}
}

// Lookup resolves manifest trigger names.
func (v *DocumentView) Lookup(name string) (binder.Trigger, bool) {
	b, ok := v.byName[name]
	return b, ok
}

// Button returns the named button.
func (v *DocumentView) Button(name string) *tui.Button {
	return v.byName[name]
}

// DefaultBindings maps the view's triggers to the presenter's actions when no
// manifest is configured.
func (v *DocumentView) DefaultBindings() []binder.Pair {
	return []binder.Pair{
		{Action: ActionSave, Trigger: v.byName[TriggerSave]},
		{Action: ActionClose, Trigger: v.byName[TriggerClose]},
		{Action: ActionQuit, Trigger: v.byName[TriggerQuit]},
		{Action: ActionBackspace, Trigger: v.byName[TriggerBackspace]},
	}
}

// Subscribe attaches the view to the aggregator. Deliveries run on ui.
// The view is held weakly, so a discarded view stops receiving messages.
func (v *DocumentView) Subscribe(agg *event.Aggregator, ui schedule.Scheduler) error {
	opts := []event.SubscriptionOption{event.OnScheduler(ui), event.WithScope(v.scope)}
	if _, err := event.SubscribeWeak(agg, v, (*DocumentView).onSaved, opts...); err != nil {
		return err
	}
	if _, err := event.SubscribeWeak(agg, v, (*DocumentView).onSaveFailed, opts...); err != nil {
		return err
	}
	return nil
}

// Detach ends the view's subscriptions.
func (v *DocumentView) Detach() {
	v.scope.Close()
}

func (v *DocumentView) onSaved(_ context.Context, m DocumentSaved) error {
	kind := "saved"
	if m.Auto {
		kind = "autosaved"
	}
	v.status = fmt.Sprintf("%s %s (%d bytes)", kind, m.Path, m.Bytes)
	return nil
}

func (v *DocumentView) onSaveFailed(_ context.Context, m DocumentSaveFailed) error {
	v.status = fmt.Sprintf("save failed: %v", m.Err)
	return nil
}

// SetText replaces the displayed document text.
func (v *DocumentView) SetText(text string) { v.text = text }

// Status returns the status line.
func (v *DocumentView) Status() string { return v.status }

// HandleKey routes a key to the button whose shortcut it is.
func (v *DocumentView) HandleKey(ctx context.Context, ev *tcell.EventKey) bool {
	for _, b := range v.byName {
		if b.HandleKey(ctx, ev) {
			return true
		}
	}
	return false
}

// Draw renders the view.
func (v *DocumentView) Draw(c tui.Canvas, width, height int) {
	tui.DrawText(c, 0, 0, v.title, tui.StyleText.Bold(true))
	tui.DrawButtons(c, 0, 1, v.buttons)

	y := 3
	for _, line := range strings.Split(v.text, "\n") {
		if y >= height-1 {
			break
		}
		if len(line) > width {
			line = line[:width]
		}
		tui.DrawText(c, 0, y, line, tui.StyleText)
		y++
	}
	if height > 0 {
		tui.DrawText(c, 0, height-1, v.status, tui.StyleDisabled)
	}
}
