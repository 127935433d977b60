package tui

import (
	"context"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/mvpkit/internal/binder"
)

// Button is a labelled trigger that can be fired by a shortcut key.
type Button struct {
	label string
	key   tcell.Key
	ch    rune
	mod   tcell.ModMask
	sig   *binder.Signal
}

// ButtonOption configures a Button.
type ButtonOption func(*Button)

// WithKey sets a special key shortcut such as tcell.KeyCtrlS or tcell.KeyF2.
func WithKey(k tcell.Key) ButtonOption {
	return func(b *Button) {
		b.key = k
		b.ch = 0
	}
}

// WithRune sets a printable shortcut with modifiers.
func WithRune(r rune, mod tcell.ModMask) ButtonOption {
	return func(b *Button) {
		b.key = tcell.KeyRune
		b.ch = r
		b.mod = mod
	}
}

// NewButton creates an enabled button.
func NewButton(label string, opts ...ButtonOption) *Button {
	b := &Button{
		label: label,
		sig:   binder.NewSignal(label),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Label returns the button label.
func (b *Button) Label() string { return b.label }

// SetEnabled implements binder.Trigger.
func (b *Button) SetEnabled(enabled bool) { b.sig.SetEnabled(enabled) }

// Enabled implements binder.Trigger.
func (b *Button) Enabled() bool { return b.sig.Enabled() }

// OnActivate implements binder.Trigger.
func (b *Button) OnActivate(fn func(ctx context.Context, payload any)) (cancel func()) {
	return b.sig.OnActivate(fn)
}

// Activate presses the button. A disabled button ignores the press and
// reports false.
func (b *Button) Activate(ctx context.Context, payload any) bool {
	return b.sig.Activate(ctx, payload)
}

// Matches reports whether ev is the button's shortcut.
func (b *Button) Matches(ev *tcell.EventKey) bool {
	if ev == nil || (b.key == 0 && b.ch == 0) {
		return false
	}
	if ev.Key() != b.key {
		return false
	}
	if b.key == tcell.KeyRune {
		return ev.Rune() == b.ch && ev.Modifiers() == b.mod
	}
	return true
}

// HandleKey presses the button when ev is its shortcut. It reports whether
// the key was consumed, which it is even when the button is disabled.
func (b *Button) HandleKey(ctx context.Context, ev *tcell.EventKey) bool {
	if !b.Matches(ev) {
		return false
	}
	b.Activate(ctx, nil)
	return true
}

// Shortcut returns a display name for the shortcut, or "".
func (b *Button) Shortcut() string {
	switch {
	case b.key == tcell.KeyRune:
		name := string(b.ch)
		if b.mod&tcell.ModAlt != 0 {
			name = "Alt-" + name
		}
		if b.mod&tcell.ModCtrl != 0 {
			name = "Ctrl-" + name
		}
		return name
	case b.key != 0:
		if name, ok := tcell.KeyNames[b.key]; ok {
			return name
		}
	}
	return ""
}
