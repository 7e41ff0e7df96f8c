// Package apierrors defines the error-kind catalogue shared by the
// coordinator and storage-actor packages, so that both sides of an RPC
// can classify a failure with errors.Contains instead of inspecting error
// strings.
package apierrors

import "github.com/NebulousLabs/errors"

var (
	// ErrNotFound is returned when an artifact name is absent at update,
	// delete, or get. It is safe to surface to a client verbatim.
	ErrNotFound = errors.New("artifact does not exist")

	// ErrCalleeUnavailable is returned when an RPC to a storage actor
	// fails because the actor is dead. Reads mask it with first-reply
	// semantics; writes log and tolerate it (the next repair will catch
	// up); it only surfaces if every replica of a read fails.
	ErrCalleeUnavailable = errors.New("storage actor unavailable")

	// ErrCapacityExhausted is returned when no live actor is available
	// for placement, during either upload or repair.
	ErrCapacityExhausted = errors.New("no live storage actors available")

	// ErrInvariantViolation names an internal bug — e.g. a duplicate actor
	// in a replica set. No coordinator code path returns or checks it, and
	// nothing in the coordinator terminates the process on such a bug.
	ErrInvariantViolation = errors.New("coordinator invariant violated")
)

// NotFoundf builds an ErrNotFound with the offending artifact name
// attached as context. The resulting message combines "artifact '<name>'"
// with ErrNotFound's own text; it is not the literal sentence
// "Artifact '<name>' does not exist".
func NotFoundf(name string) error {
	return errors.AddContext(ErrNotFound, "artifact '"+name+"'")
}
