package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/agenthands/scrivener/internal/core/model"
)

// Version selects which content of a versioned document a read resolves.
type Version string

const (
	V1   Version = "v1"   // immutable original, set once
	V2   Version = "v2"   // optional edited text
	Head Version = "head" // whichever version the pointer currently selects
)

var (
	// ErrNotFound means the requested document does not exist at all.
	ErrNotFound = errors.New("store: version not found")
	// ErrExists means an original was already seeded for the slot; v1 is
	// write-once.
	ErrExists = errors.New("store: original already exists")
)

// PersistenceError wraps a backend read/write failure. Mutations that return
// one leave the HEAD pointer exactly where it was.
type PersistenceError struct {
	Op  string
	Ref model.SlotRef
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// HeadResolver is the read-only subset of VersionStore that consumers of "the
// document" depend on. Callers must go through MaterializedHeadCopy rather
// than a value captured at an earlier point in time; that is the fix to the
// stale-cache drift this subsystem exists to avoid.
type HeadResolver interface {
	MaterializedHeadCopy(ctx context.Context, ref model.SlotRef) (string, error)
}

// VersionStore persists, per slot, an original version, an optional edited
// version, and the single HEAD pointer selecting which is authoritative.
// Operations are per-slot; a failure on one slot never affects others. All
// mutations are idempotent when retried with the same arguments.
type VersionStore interface {
	HeadResolver

	// PutOriginal seeds v1 exactly once and points HEAD at it.
	PutOriginal(ctx context.Context, ref model.SlotRef, text string) error

	// GetVersion resolves text for a slot. Head follows the pointer.
	// Explicit V1/V2 bypass the pointer; a missing v2 falls back to v1
	// (never to the pointer) so callers needing a raw baseline get
	// deterministic behavior.
	GetVersion(ctx context.Context, ref model.SlotRef, which Version) (string, error)

	// SaveEdited creates or overwrites v2, then atomically flips HEAD to
	// V2. If the v2 write fails the pointer is left unchanged.
	SaveEdited(ctx context.Context, ref model.SlotRef, text string) error

	// RevertToOriginal flips HEAD to V1; with purge it deletes v2 only
	// after the flip is durable, so no reader can observe HEAD pointing at
	// a missing file. Reverting when already at V1 is a no-op that
	// succeeds.
	RevertToOriginal(ctx context.Context, ref model.SlotRef, purge bool) error

	// Head reports which version the pointer currently selects.
	Head(ctx context.Context, ref model.SlotRef) (Version, error)
}
