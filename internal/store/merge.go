package store

import (
	"fmt"

	"github.com/roach88/profilesync/internal/model"
)

// merge applies m to the queues. Caller holds mu.
func (s *Store) merge(m model.Mutation) error {
	switch m.Kind {
	case model.KindSet:
		set := s.queue(model.KindSet)
		for k, v := range m.Props {
			set[k] = model.Clone(v)
		}
		s.pop(m.Props, model.KindAdd, model.KindUnion, model.KindUnset)

	case model.KindSetOnce:
		setOnce := s.queue(model.KindSetOnce)
		for k, v := range m.Props {
			if _, exists := setOnce[k]; !exists {
				setOnce[k] = model.Clone(v)
			}
		}
		s.pop(m.Props, model.KindUnset)

	case model.KindUnset:
		unset := s.queue(model.KindUnset)
		for _, name := range m.UnsetNames() {
			for _, kind := range []model.ActionKind{model.KindSet, model.KindSetOnce, model.KindAdd, model.KindUnion} {
				if q := s.merged[kind]; q != nil {
					delete(q, name)
				}
			}
			s.dropFromAppends(name)
			unset[name] = model.Bool(true)
		}

	case model.KindAdd:
		set := s.merged[model.KindSet]
		add := s.queue(model.KindAdd)
		for k, v := range m.Props {
			if cur, ok := set[k]; ok {
				if sum, ok := model.AddNumbers(cur, v); ok {
					set[k] = sum
					continue
				}
			}
			if cur, ok := add[k]; ok {
				sum, ok := model.AddNumbers(cur, v)
				if !ok {
					return fmt.Errorf("property %q: cannot add non-numeric values", k)
				}
				add[k] = sum
				continue
			}
			if _, ok := model.AsNumber(v); !ok {
				return fmt.Errorf("property %q: increment value must be numeric", k)
			}
			add[k] = v
		}
		s.pop(m.Props, model.KindUnset)

	case model.KindUnion:
		union := s.queue(model.KindUnion)
		for k, v := range m.Props {
			incoming, ok := v.(model.Array)
			if !ok {
				incoming = model.Array{v}
			}
			existing, _ := union[k].(model.Array)
			union[k] = unionValues(existing, incoming)
		}
		s.pop(m.Props, model.KindUnset)

	case model.KindAppend:
		if len(m.Props) == 0 {
			return nil
		}
		item := m.Props.Clone()
		h, err := model.AppendHash(item)
		if err != nil {
			return err
		}
		s.appends = append(s.appends, appendEntry{hash: h, item: item})
		s.pop(m.Props, model.KindUnset)

	default:
		return fmt.Errorf("unsupported kind %q", m.Kind)
	}

	s.prune()
	return nil
}

// queue returns the merged queue for kind, creating it if needed.
func (s *Store) queue(kind model.ActionKind) model.Object {
	q, ok := s.merged[kind]
	if !ok {
		q = model.Object{}
		s.merged[kind] = q
	}
	return q
}

// pop deletes the keys of props from each of the given kinds' queues.
func (s *Store) pop(props model.Object, kinds ...model.ActionKind) {
	for _, kind := range kinds {
		q := s.merged[kind]
		if q == nil {
			continue
		}
		for k := range props {
			delete(q, k)
		}
	}
}

// dropFromAppends removes name from every queued append entry and drops
// entries left empty.
func (s *Store) dropFromAppends(name string) {
	kept := s.appends[:0]
	for _, e := range s.appends {
		if _, ok := e.item[name]; ok {
			delete(e.item, name)
			if len(e.item) == 0 {
				continue
			}
			h, err := model.AppendHash(e.item)
			if err != nil {
				continue
			}
			e.hash = h
		}
		kept = append(kept, e)
	}
	s.appends = kept
}

// prune drops empty merged queues so Current reports them absent.
func (s *Store) prune() {
	for kind, q := range s.merged {
		if len(q) == 0 {
			delete(s.merged, kind)
		}
	}
}

// unionValues appends the elements of incoming not already present in
// existing, preserving first-seen order.
func unionValues(existing, incoming model.Array) model.Array {
	out := make(model.Array, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	for _, v := range incoming {
		if !containsValue(out, v) {
			out = append(out, model.Clone(v))
		}
	}
	return out
}

func containsValue(list model.Array, v model.Value) bool {
	for _, elem := range list {
		if model.Equal(elem, v) {
			return true
		}
	}
	return false
}
