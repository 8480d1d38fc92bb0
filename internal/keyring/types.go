// Package keyring contains the reconciliation core: the domain types, the
// capability interfaces the tool-backed implementations plug into, and the
// engine that brings the system trust store to a declared desired state.
//
// The package performs no I/O of its own. Fetching, key inspection, and
// trust-store access are injected, which keeps the engine testable with
// in-process fakes and keeps the external text-protocol contracts at the
// implementation boundary.
package keyring

import (
	"context"
	"fmt"
	"strings"
)

// KeyID is a canonical hexadecimal identifier for a signing key.
// IDs are normalized to upper case on construction; comparison is
// case-insensitive either way.
type KeyID string

// NewKeyID normalizes a caller-supplied identifier.
func NewKeyID(s string) KeyID {
	return KeyID(strings.ToUpper(strings.TrimSpace(s)))
}

// String returns the string representation of the key ID.
func (k KeyID) String() string {
	return string(k)
}

// Equal reports whether two identifiers name the same key,
// ignoring case.
func (k KeyID) Equal(other KeyID) bool {
	return strings.EqualFold(string(k), string(other))
}

// Material is exported key data as produced by a key-export operation.
// It is opaque to this system: fetched once, fed to the inspector and,
// on the present path, to the trust store. Never persisted.
type Material []byte

// State is the desired end state for a key.
type State string

const (
	// StatePresent means the key must exist in the trust store.
	StatePresent State = "present"
	// StateAbsent means the key must not exist in the trust store.
	StateAbsent State = "absent"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// ParseState validates a caller-supplied state string.
// Anything outside {present, absent} fails with ErrInvalidState.
func ParseState(s string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case StatePresent:
		return StatePresent, nil
	case StateAbsent:
		return StateAbsent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// Request describes one reconciliation. ID and URL are both optional,
// but at least one of them must resolve to a concrete identifier for
// the flows that need one.
type Request struct {
	// ID is the expected key identifier, if the caller knows it.
	ID KeyID
	// URL is the source to fetch key material from, if needed.
	URL string
	// State is the desired end state.
	State State
}

// Result is the outcome of a single reconciliation.
type Result struct {
	// Changed reports whether the trust store was mutated.
	Changed bool
	// KeyID is the identifier the reconciliation resolved, from the
	// caller or from fetched material.
	KeyID KeyID
}

// Prober checks that the external executables a reconciliation depends
// on are available. An empty result means ready.
type Prober interface {
	// Missing returns the names of required tools not found, sorted.
	Missing() []string
}

// Fetcher retrieves raw key material from a source URL.
// One attempt, no retries; any failure is terminal.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Material, error)
}

// Inspector derives key identifiers from untrusted key material.
// Identifiers are returned in the order encountered; callers requiring
// exactly one must enforce that themselves.
type Inspector interface {
	ExtractIDs(ctx context.Context, material Material) ([]KeyID, error)
}

// Store is the system trust store. Contains never treats "not present"
// as an error; Add and Remove mutate external state with no rollback.
type Store interface {
	Contains(ctx context.Context, id KeyID) (bool, error)
	Add(ctx context.Context, material Material) error
	Remove(ctx context.Context, id KeyID) error
}
