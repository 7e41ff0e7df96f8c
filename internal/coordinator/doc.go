// Package coordinator implements the blob store's name node: the
// authoritative artifact placement map, the client-facing upload/update/
// delete/get/list operations, the repair routine triggered by storage-actor
// death, and the chaos driver that exercises it.
//
// # Actor discipline
//
// The Coordinator is itself a goroutine-owned actor, mirroring
// internal/actor: a single consumer goroutine drains a mailbox and
// processes one request at a time, so a node-death notification can never
// race an in-flight upload or update. There is no mutex in the placement
// path — the artifacts map and insertion-order slice are touched only from
// that one goroutine.
//
// # Placement
//
// sort_live_actors (liveActorsSorted) is the single placement primitive:
// alive actors ordered by ascending load counter, ties broken by ascending
// id. Upload, update's grow step, and repair all place new replicas by
// taking the front of this list.
//
// # Repair
//
// handleNodeDown removes a dead actor from every replica set that
// contained it and calls repairChunk per affected chunk, which fetches the
// payload from a surviving replica and stores it on a newly-chosen host,
// iterating until the replica set is full or no eligible host remains.
package coordinator
