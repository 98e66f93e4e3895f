// Package model provides the data types shared by every profile mutation
// component.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Property values are a sealed set (Null, String, Int, Float, Bool,
//     Array, Object); caller input is converted once, at the boundary, by
//     FromGo
//   - Object keys are always iterated in RFC 8785 order (SortedKeys) so the
//     wire body, persisted snapshots and content hashes are deterministic
//   - Equality of values is defined by their canonical JSON encoding
//   - A Mutation never carries a reserved property key (enforced by the
//     mutation package, relied on here)
package model
