// Package action defines qualified action identities.
//
// An Identity names one logical user action, such as "Document.Save". Identities
// are comparable values and may be used directly as map keys. They are usually
// declared once at package level through a Factory:
//
//	var doc = action.NewFactory("Document")
//
//	var (
//	    Save  = doc.Action("Save")
//	    Close = doc.Action("Close")
//	)
package action

import "strings"

// Identity is an immutable qualified action key.
// Two identities are equal iff both the qualifier and the name match.
type Identity struct {
	qualifier string
	name      string
}

// New creates an identity. It never fails.
func New(qualifier, name string) Identity {
	return Identity{qualifier: qualifier, name: name}
}

// Parse builds an identity from its dotted form, splitting on the last dot.
// A string without a dot yields an unqualified identity.
func Parse(s string) Identity {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return Identity{name: s}
	}
	return Identity{qualifier: s[:i], name: s[i+1:]}
}

// Qualifier returns the namespace part.
func (id Identity) Qualifier() string { return id.qualifier }

// Name returns the short action name.
func (id Identity) Name() string { return id.name }

// IsZero reports whether the identity is the zero value.
func (id Identity) IsZero() bool { return id.qualifier == "" && id.name == "" }

// String returns "Qualifier.Name", or just the name when unqualified.
func (id Identity) String() string {
	if id.qualifier == "" {
		return id.name
	}
	return id.qualifier + "." + id.name
}

// Factory produces identities sharing a qualifier.
type Factory struct {
	qualifier string
}

// NewFactory creates a factory for the given qualifier.
func NewFactory(qualifier string) Factory {
	return Factory{qualifier: qualifier}
}

// Qualifier returns the factory's qualifier.
func (f Factory) Qualifier() string { return f.qualifier }

// Action creates an identity in this factory's namespace.
func (f Factory) Action(name string) Identity {
	return New(f.qualifier, name)
}

// Child returns a nested factory whose qualifier is "parent.segment".
func (f Factory) Child(segment string) Factory {
	if f.qualifier == "" {
		return Factory{qualifier: segment}
	}
	return Factory{qualifier: f.qualifier + "." + segment}
}
