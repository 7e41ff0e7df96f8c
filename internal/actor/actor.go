package actor

import (
	"strconv"

	"github.com/dreamware/blobvault/internal/apierrors"
	"github.com/dreamware/blobvault/internal/storage"
)

// chunkKey builds the composite storage.Store key for one (artifact name,
// chunk index) pair, per internal/storage's documented key scheme.
func chunkKey(name string, index int) string {
	return name + "\x00" + strconv.Itoa(index)
}

// DeathNotifier is the narrow callback surface an Actor uses to tell its
// coordinator about an alive→dead transition. It is implemented by
// *coordinator.Coordinator; Actor depends only on this interface so that
// internal/actor never imports internal/coordinator.
type DeathNotifier interface {
	// NodeDown reports that id just transitioned from alive to dead.
	//
	// Parameters:
	//   - id: the dying actor's stable identifier
	//
	// Thread-safety:
	//   - Called from a goroutine spawned per call, never from the
	//     actor's own dispatch loop, so implementations may block without
	//     stalling the actor.
	//   - Must not call back into the same Actor synchronously; doing so
	//     would deadlock against its mailbox if the actor is waiting on
	//     the call that triggered this notification.
	NodeDown(id int)
}

// Info is the serialized summary returned by Info(): id, liveness, and the
// chunk indices held per artifact (payloads omitted from the summary —
// callers that need payloads use Get).
//
// Thread-safety:
//   - Info is a plain value snapshot, safe to read and copy freely once
//     returned; it shares no state with the Actor that produced it.
type Info struct {
	ID      int
	Alive   bool
	Entries map[string][]int
}

type opcode int

const (
	opStore opcode = iota
	opUpdate
	opDelete
	opGet
	opStatus
	opToggle
	opClear
	opInfo
	opChunkCount
	opStop
)

type request struct {
	op      opcode
	name    string
	index   int
	payload []byte
	reply   chan response
}

type response struct {
	err     error
	payload []byte
	alive   bool
	count   int
	info    Info
}

// Actor is a storage actor: a single goroutine owning a private
// (artifact-name, chunk-index) -> payload map, processing one request at a
// time off its mailbox.
//
// Thread-safety:
//   - All exported methods are safe to call from any number of goroutines
//     concurrently. Each call blocks on a dedicated reply channel while the
//     actor's own goroutine processes it; none of a.call's callers ever
//     touch the actor's internal state directly, so Actor needs no mutex.
type Actor struct {
	id       int
	mailbox  chan request
	done     chan struct{}
	notifier DeathNotifier
	store    storage.Store
}

// New starts a storage actor with the given id and begins serving requests.
//
// Parameters:
//   - id: the actor's stable identifier, unique within its coordinator
//   - notifier: receives the actor's alive→dead transition; nil disables
//     reporting (useful in isolated actor tests)
//
// Returns:
//   - a running Actor; its dispatch goroutine is already live on return
func New(id int, notifier DeathNotifier) *Actor {
	a := &Actor{
		id:       id,
		mailbox:  make(chan request),
		done:     make(chan struct{}),
		notifier: notifier,
		store:    storage.NewMemoryStore(),
	}
	go a.run()
	return a
}

// ID returns the actor's stable identifier.
//
// Returns:
//   - the id passed to New
func (a *Actor) ID() int { return a.id }

func (a *Actor) run() {
	alive := true
	// entries tracks which (artifact, chunk index) pairs this actor holds;
	// the payload bytes themselves live in a.store, a swappable key-value
	// backend that knows nothing about artifacts or chunks.
	entries := make(map[string]map[int]bool)
	chunkCount := 0

	for req := range a.mailbox {
		switch req.op {
		case opStore:
			if !alive {
				req.reply <- response{err: apierrors.ErrCalleeUnavailable}
				continue
			}
			inner, ok := entries[req.name]
			if !ok {
				inner = make(map[int]bool)
				entries[req.name] = inner
				chunkCount++
			}
			inner[req.index] = true
			a.store.Put(chunkKey(req.name, req.index), req.payload)
			req.reply <- response{}

		case opUpdate:
			if !alive {
				req.reply <- response{err: apierrors.ErrCalleeUnavailable}
				continue
			}
			if inner, ok := entries[req.name]; ok && inner[req.index] {
				a.store.Put(chunkKey(req.name, req.index), req.payload)
			}
			req.reply <- response{}

		case opDelete:
			if !alive {
				req.reply <- response{err: apierrors.ErrCalleeUnavailable}
				continue
			}
			if inner, ok := entries[req.name]; ok && inner[req.index] {
				delete(inner, req.index)
				a.store.Delete(chunkKey(req.name, req.index))
				if len(inner) == 0 {
					delete(entries, req.name)
					chunkCount--
				}
			}
			req.reply <- response{}

		case opGet:
			if !alive {
				req.reply <- response{err: apierrors.ErrCalleeUnavailable}
				continue
			}
			inner, ok := entries[req.name]
			if !ok || !inner[req.index] {
				req.reply <- response{err: apierrors.ErrCalleeUnavailable}
				continue
			}
			payload, err := a.store.Get(chunkKey(req.name, req.index))
			if err != nil {
				req.reply <- response{err: apierrors.ErrCalleeUnavailable}
				continue
			}
			req.reply <- response{payload: payload}

		case opStatus:
			req.reply <- response{alive: alive}

		case opToggle:
			wasAlive := alive
			alive = !alive
			req.reply <- response{alive: alive}
			if wasAlive && !alive && a.notifier != nil {
				go a.notifier.NodeDown(a.id)
			}

		case opClear:
			entries = make(map[string]map[int]bool)
			chunkCount = 0
			a.store.Clear()
			req.reply <- response{}

		case opInfo:
			out := make(map[string][]int, len(entries))
			for name, inner := range entries {
				indices := make([]int, 0, len(inner))
				for idx := range inner {
					indices = append(indices, idx)
				}
				out[name] = indices
			}
			req.reply <- response{info: Info{ID: a.id, Alive: alive, Entries: out}}

		case opChunkCount:
			req.reply <- response{count: chunkCount}

		case opStop:
			req.reply <- response{}
			close(a.done)
			return
		}
	}
}

func (a *Actor) call(req request) response {
	req.reply = make(chan response, 1)
	a.mailbox <- req
	return <-req.reply
}

// Store inserts payload at (name, index), per spec.md §4.1: a brand-new
// artifact entry increments the actor's chunk_count; an additional chunk on
// an existing artifact does not.
//
// Parameters:
//   - name: the artifact the chunk belongs to
//   - index: the chunk's position within the artifact
//   - payload: the chunk bytes; the actor's store keeps its own copy
//
// Returns:
//   - apierrors.ErrCalleeUnavailable if the actor is currently dead
//
// Thread-safety:
//   - Safe for concurrent use; serialized through the actor's mailbox.
func (a *Actor) Store(name string, index int, payload []byte) error {
	return a.call(request{op: opStore, name: name, index: index, payload: payload}).err
}

// Update overwrites (name, index) only if it already exists; otherwise it is
// a silent no-op.
//
// Parameters:
//   - name: the artifact to update
//   - index: the chunk's position within the artifact
//   - payload: the replacement bytes
//
// Returns:
//   - apierrors.ErrCalleeUnavailable if the actor is currently dead
func (a *Actor) Update(name string, index int, payload []byte) error {
	return a.call(request{op: opUpdate, name: name, index: index, payload: payload}).err
}

// Delete removes (name, index). If that was the artifact's last chunk on
// this actor, the artifact entry is dropped and chunk_count decrements.
//
// Parameters:
//   - name: the artifact to remove a chunk from
//   - index: the chunk's position within the artifact
//
// Returns:
//   - apierrors.ErrCalleeUnavailable if the actor is currently dead
//   - nil if the chunk was already absent; deletion is idempotent
func (a *Actor) Delete(name string, index int) error {
	return a.call(request{op: opDelete, name: name, index: index}).err
}

// Get returns the payload at (name, index). It fails with
// apierrors.ErrCalleeUnavailable both when the actor is dead and when the
// chunk is simply absent — from the coordinator's first-reply perspective
// these are indistinguishable failures to try the next replica.
//
// Parameters:
//   - name: the artifact to read from
//   - index: the chunk's position within the artifact
//
// Returns:
//   - the chunk's payload bytes
//   - apierrors.ErrCalleeUnavailable on a dead actor or a missing chunk
func (a *Actor) Get(name string, index int) ([]byte, error) {
	resp := a.call(request{op: opGet, name: name, index: index})
	return resp.payload, resp.err
}

// Status reports whether the actor is currently alive.
//
// Returns:
//   - true if alive, false if dead
func (a *Actor) Status() bool {
	return a.call(request{op: opStatus}).alive
}

// Toggle flips alive/dead and returns the new state. On the true→false
// edge it notifies the coordinator asynchronously, matching spec.md's
// "fire-and-forget from the actor's perspective".
//
// Returns:
//   - the actor's liveness after the flip
//
// Thread-safety:
//   - The notifier call happens in a goroutine spawned after Toggle's
//     reply is queued, so Toggle itself never blocks on the notifier.
func (a *Actor) Toggle() bool {
	return a.call(request{op: opToggle}).alive
}

// Clear drops all chunks and resets chunk_count to zero. Used by the
// coordinator's repair routine once a dead actor's placement entries have
// been reconciled, so a later revival starts with an honest load hint.
func (a *Actor) Clear() {
	a.call(request{op: opClear})
}

// Info returns a point-in-time summary of the actor's contents.
//
// Returns:
//   - a snapshot Info; later mutations to the actor do not affect it
func (a *Actor) Info() Info {
	return a.call(request{op: opInfo}).info
}

// ChunkCount returns the actor's current load counter. It is a coarse,
// monotone-ish hint for placement, not an exact chunk tally (spec.md §4.1).
//
// Returns:
//   - the number of distinct artifacts with at least one chunk on this actor
func (a *Actor) ChunkCount() int {
	return a.call(request{op: opChunkCount}).count
}

// Stop shuts the actor's goroutine down. Any request sent after Stop panics
// on a closed channel, matching the teacher pack's convention that actor
// handles are not used past shutdown.
//
// Thread-safety:
//   - Not safe to call concurrently with itself; callers own the actor's
//     lifecycle and are expected to call Stop exactly once.
func (a *Actor) Stop() {
	a.call(request{op: opStop})
	close(a.mailbox)
	<-a.done
}
