// Package actor implements the storage actor: the leaf component that
// physically holds chunk payloads in memory and reports its own liveness.
//
// # Actor discipline
//
// Each Actor owns a single background goroutine that drains a mailbox
// channel and processes one request at a time, in arrival order. Every
// exported method builds a request, sends it on the mailbox, and blocks on
// a per-call reply channel — there is no mutex on the actor's bookkeeping,
// because nothing outside the owning goroutine ever touches it. Payload
// bytes themselves live in an internal/storage.Store (a MemoryStore,
// keyed by artifact name and chunk index); the actor goroutine owns which
// keys exist and the quirky load counter (see ChunkCount), the store just
// holds bytes.
//
// # Death
//
// Toggle flips the actor between alive and dead. While dead, Store,
// Update, Delete, and Get all fail with apierrors.ErrCalleeUnavailable —
// this is what gives the coordinator's first-reply read and its repair
// loop something real to react to. Status, Info, ChunkCount, Clear, and
// Toggle itself always succeed regardless of liveness: they are
// introspection and lifecycle operations, not data-plane RPCs.
package actor
