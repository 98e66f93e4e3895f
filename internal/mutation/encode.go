// Package mutation turns caller arguments into normalized mutations.
//
// Caller input arrives in one of two shapes, a single (name, value) pair or
// a name -> value map. Each shape has its own entry point (Encode and
// EncodeMap) so the shape is resolved once, here, and everything downstream
// works on model.Mutation only.
package mutation

import (
	"fmt"
	"slices"

	"github.com/roach88/profilesync/internal/model"
)

// Encode builds a mutation of the given kind from a single property.
// Reserved names are dropped silently. UNSET and DELETE have their own
// constructors (EncodeUnset, model.NewDeleteMutation).
func Encode(kind model.ActionKind, name string, value any) (model.Mutation, ValidationErrors) {
	return EncodeMap(kind, map[string]any{name: value})
}

// EncodeMap builds a mutation of the given kind from a property map.
// Every key passes the reserved property filter; values that cannot be
// converted (or, for ADD, are not numeric) are dropped and reported in
// property name order.
func EncodeMap(kind model.ActionKind, props map[string]any) (model.Mutation, ValidationErrors) {
	var errs ValidationErrors

	switch kind {
	case model.KindSet, model.KindSetOnce, model.KindAdd, model.KindAppend, model.KindUnion:
	case model.KindUnset:
		names := make([]string, 0, len(props))
		for k := range props {
			names = append(names, k)
		}
		slices.Sort(names)
		return EncodeUnset(names...)
	default:
		errs = append(errs, ValidationError{Kind: kind, Message: "action does not take properties"})
		return model.Mutation{Kind: kind}, errs
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make(model.Object, len(props))
	for _, name := range names {
		raw := props[name]
		if IsReserved(name) {
			continue
		}

		v, err := model.FromGo(raw)
		if err != nil {
			errs = append(errs, ValidationError{Kind: kind, Property: name, Message: err.Error()})
			continue
		}

		switch kind {
		case model.KindAdd:
			n, ok := model.ParseNumber(v)
			if !ok {
				errs = append(errs, ValidationError{
					Kind:     kind,
					Property: name,
					Message:  fmt.Sprintf("increment value must be a number, got %s", describe(v)),
				})
				continue
			}
			v = n
		case model.KindUnion:
			v = AsList(v)
		}

		out[name] = v
	}

	return model.NewPropsMutation(kind, out), errs
}

// EncodeUnset builds an UNSET mutation. Output is always a name sequence,
// in caller order, without duplicates or reserved names.
func EncodeUnset(names ...string) (model.Mutation, ValidationErrors) {
	var errs ValidationErrors
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			errs = append(errs, ValidationError{Kind: model.KindUnset, Message: "property name must not be empty"})
			continue
		}
		if IsReserved(n) || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return model.NewUnsetMutation(out...), errs
}

// Increment is the single-property ADD convenience: the amount defaults to 1.
func Increment(name string) (model.Mutation, ValidationErrors) {
	return Encode(model.KindAdd, name, 1)
}

// AsList promotes a scalar to a single-element list. Lists pass through
// unchanged, so AsList is idempotent.
func AsList(v model.Value) model.Array {
	if arr, ok := v.(model.Array); ok {
		return arr
	}
	return model.Array{v}
}

func describe(v model.Value) string {
	b, err := model.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	return string(b)
}
