package model

import "fmt"

// ActionKind identifies a profile mutation verb. The string value is the
// action key used on the wire.
type ActionKind string

const (
	KindSet     ActionKind = "$set"
	KindSetOnce ActionKind = "$set_once"
	KindUnset   ActionKind = "$unset"
	KindAdd     ActionKind = "$add"
	KindAppend  ActionKind = "$append"
	KindUnion   ActionKind = "$union"
	KindDelete  ActionKind = "$delete"
)

// QueuedKinds lists the kinds that can be buffered while identity is
// unresolved, in the order snapshots are persisted. DELETE is never queued.
var QueuedKinds = []ActionKind{
	KindSet,
	KindSetOnce,
	KindUnset,
	KindAdd,
	KindUnion,
	KindAppend,
}

// MergedKinds are the queued kinds whose pending queue is a single merged
// payload (everything except APPEND).
var MergedKinds = []ActionKind{
	KindSet,
	KindSetOnce,
	KindUnset,
	KindAdd,
	KindUnion,
}

// Reserved property names. A mutation payload never contains these; the
// dispatcher injects them into the wire request.
const (
	PropToken      = "$token"
	PropDistinctID = "$distinct_id"
)

// Queued reports whether mutations of this kind may be buffered.
func (k ActionKind) Queued() bool {
	return k != KindDelete && k.Valid()
}

// Valid reports whether k is one of the seven known kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case KindSet, KindSetOnce, KindUnset, KindAdd, KindAppend, KindUnion, KindDelete:
		return true
	}
	return false
}

// ParseActionKind accepts either the wire key ("$set") or the bare verb
// ("set", "set_once").
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if k.Valid() {
		return k, nil
	}
	k = ActionKind("$" + s)
	if k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown action kind %q", s)
}

// String returns the bare verb without the "$" prefix (for logs and labels).
func (k ActionKind) String() string {
	if len(k) > 0 && k[0] == '$' {
		return string(k[1:])
	}
	return string(k)
}
