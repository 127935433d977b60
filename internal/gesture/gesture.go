// Package gesture tags physical user interactions with monotonically
// increasing tokens so that a single gesture forwarded along two paths
// can be recognised as one.
package gesture

import (
	"context"
	"strconv"
	"sync/atomic"
)

// Token identifies one physical user interaction.
// The zero value (None) means no gesture is attached.
type Token struct {
	seq uint64
}

// None is the empty token.
var None Token

// IsZero reports whether the token is None.
func (t Token) IsZero() bool { return t.seq == 0 }

// Seq returns the token's sequence number.
func (t Token) Seq() uint64 { return t.seq }

// String returns a short printable form.
func (t Token) String() string {
	if t.seq == 0 {
		return "gesture:none"
	}
	return "gesture:" + strconv.FormatUint(t.seq, 10)
}

// Source issues tokens. It is safe for concurrent use.
type Source struct {
	next atomic.Uint64
}

// NewSource creates a token source.
func NewSource() *Source {
	return &Source{}
}

// Next returns a fresh token. Tokens from one source are strictly increasing.
func (s *Source) Next() Token {
	return Token{seq: s.next.Add(1)}
}

type ctxKey struct{}

// WithToken attaches a token to ctx.
func WithToken(ctx context.Context, t Token) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the token attached to ctx, or None.
func FromContext(ctx context.Context) Token {
	if ctx == nil {
		return None
	}
	if t, ok := ctx.Value(ctxKey{}).(Token); ok {
		return t
	}
	return None
}
