package model

import "fmt"

// Mutation is the normalized form of one profile mutation: a tagged union
// keyed by Kind.
//
//   - SET, SET_ONCE, ADD, APPEND, UNION carry Props
//   - UNSET carries Names
//   - DELETE carries neither (the profile id is injected on the wire)
type Mutation struct {
	Kind  ActionKind
	Props Object
	Names []string
}

// NewPropsMutation creates a property-map mutation.
func NewPropsMutation(kind ActionKind, props Object) Mutation {
	if props == nil {
		props = Object{}
	}
	return Mutation{Kind: kind, Props: props}
}

// NewUnsetMutation creates an UNSET mutation for the given names.
func NewUnsetMutation(names ...string) Mutation {
	return Mutation{Kind: KindUnset, Names: append([]string{}, names...)}
}

// NewDeleteMutation creates a DELETE mutation.
func NewDeleteMutation() Mutation {
	return Mutation{Kind: KindDelete}
}

// Payload returns the value carried under the action key on the wire.
// DELETE has no payload of its own; Request.Object fills in the profile id.
func (m Mutation) Payload() Value {
	switch m.Kind {
	case KindUnset:
		arr := make(Array, len(m.Names))
		for i, n := range m.Names {
			arr[i] = String(n)
		}
		return arr
	case KindDelete:
		return Null{}
	default:
		if m.Props == nil {
			return Object{}
		}
		return m.Props
	}
}

// IsEmpty reports whether the mutation carries nothing to apply.
// DELETE is never empty.
func (m Mutation) IsEmpty() bool {
	switch m.Kind {
	case KindDelete:
		return false
	case KindUnset:
		return len(m.Names) == 0 && len(m.Props) == 0
	default:
		return len(m.Props) == 0
	}
}

// UnsetNames returns the property names an UNSET mutation removes.
// Pending UNSET queues are held as a name -> true object; this flattens either
// representation into a sorted name sequence.
func (m Mutation) UnsetNames() []string {
	if len(m.Names) > 0 || len(m.Props) == 0 {
		return append([]string{}, m.Names...)
	}
	return m.Props.SortedKeys()
}

// Clone returns a deep copy of the mutation.
func (m Mutation) Clone() Mutation {
	out := Mutation{Kind: m.Kind, Props: m.Props.Clone()}
	if m.Names != nil {
		out.Names = append([]string{}, m.Names...)
	}
	return out
}

// Validate checks the shape invariants of the tagged union.
func (m Mutation) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown action kind %q", m.Kind)
	}
	switch m.Kind {
	case KindDelete:
		if len(m.Props) > 0 || len(m.Names) > 0 {
			return fmt.Errorf("%s mutation carries no properties", m.Kind)
		}
	case KindUnset:
		// either representation is accepted
	default:
		if len(m.Names) > 0 {
			return fmt.Errorf("%s mutation carries properties, not names", m.Kind)
		}
	}
	for _, k := range []string{PropToken, PropDistinctID} {
		if _, ok := m.Props[k]; ok {
			return fmt.Errorf("%s mutation contains reserved property %q", m.Kind, k)
		}
	}
	return nil
}
