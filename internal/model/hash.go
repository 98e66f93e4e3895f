package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainMutation = "profilesync/mutation/v1"
	DomainAppend   = "profilesync/append/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MutationHash computes the content-addressed identity of a mutation.
// Two mutations with the same kind and canonically equal payloads hash the
// same, regardless of map iteration order.
func MutationHash(m Mutation) (string, error) {
	obj := Object{
		"kind":    String(m.Kind),
		"payload": m.Payload(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MutationHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMutation, canonical), nil
}

// AppendHash identifies a queued append entry for exact-match removal.
func AppendHash(item Object) (string, error) {
	canonical, err := MarshalCanonical(item)
	if err != nil {
		return "", fmt.Errorf("AppendHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAppend, canonical), nil
}

// MustAppendHash is like AppendHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustAppendHash(item Object) string {
	h, err := AppendHash(item)
	if err != nil {
		panic(err)
	}
	return h
}
