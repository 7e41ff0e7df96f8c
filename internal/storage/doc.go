// Package storage provides the per-actor chunk storage used by the storage
// actors (see internal/actor), plus the generic key-value Store interface
// it is built on.
//
// # Key scheme
//
// A StorageActor keeps one Store instance and addresses individual chunk
// payloads with a composite key of the form "<artifact-name>\x00<chunk
// index>". The store itself knows nothing about artifacts or chunks; the
// actor layer is responsible for the bookkeeping (which artifact names
// exist, how many chunks each one has) described in spec §3/§4.1. This
// split mirrors the shard/storage split in the teacher pack: the storage
// layer is a dumb, swappable backend and the layer above it owns domain
// semantics.
//
// # Implementations
//
// MemoryStore is the only implementation: a plain in-memory map, no lock.
// It is never shared outside the actor that owns it, and that actor
// already serializes every call through its own mailbox, so there is no
// concurrent access for a lock to guard — the same reasoning that keeps
// Coordinator's placement map mutex-free. The system is explicitly
// memory-resident (spec Non-goals exclude durability across restart), so
// no persistent backend is provided either.
package storage
