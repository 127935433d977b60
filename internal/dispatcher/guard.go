package dispatcher

import (
	"github.com/dshills/mvpkit/internal/action"
	"github.com/dshills/mvpkit/internal/gesture"
)

// gestureGuard remembers which gestures already reached each action.
// History per action is a bounded FIFO; the oldest token is forgotten first.
type gestureGuard struct {
	window int
	seen   map[action.Identity]*tokenWindow
}

type tokenWindow struct {
	set   map[gesture.Token]struct{}
	order []gesture.Token
}

func newGestureGuard(window int) *gestureGuard {
	if window <= 0 {
		window = DefaultGuardWindow
	}
	return &gestureGuard{
		window: window,
		seen:   make(map[action.Identity]*tokenWindow),
	}
}

// seenBefore reports whether tok was already recorded for id.
// The zero token is never a duplicate.
func (g *gestureGuard) seenBefore(id action.Identity, tok gesture.Token) bool {
	if tok.IsZero() {
		return false
	}
	w := g.seen[id]
	if w == nil {
		return false
	}
	_, ok := w.set[tok]
	return ok
}

// record marks tok as seen for id.
func (g *gestureGuard) record(id action.Identity, tok gesture.Token) {
	if tok.IsZero() {
		return
	}
	w := g.seen[id]
	if w == nil {
		w = &tokenWindow{set: make(map[gesture.Token]struct{})}
		g.seen[id] = w
	}
	if _, ok := w.set[tok]; ok {
		return
	}
	if len(w.order) >= g.window {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.set, oldest)
	}
	w.set[tok] = struct{}{}
	w.order = append(w.order, tok)
}

func (g *gestureGuard) clear() {
	g.seen = make(map[action.Identity]*tokenWindow)
}
