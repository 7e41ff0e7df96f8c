// Package coordinator implements the name node of the blob store: the
// authoritative placement map, client-facing CRUD, and the repair routine
// that reacts to storage-actor death. See doc.go for the package overview.
package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/NebulousLabs/errors"
	"github.com/NebulousLabs/threadgroup"
	"golang.org/x/exp/slices"

	"github.com/dreamware/blobvault/internal/actor"
	"github.com/dreamware/blobvault/internal/apierrors"
	"github.com/dreamware/blobvault/internal/cluster"
	"github.com/dreamware/blobvault/internal/config"
)

// actorCallTimeout bounds every coordinator-to-actor round trip. A dead
// actor replies at once with ErrCalleeUnavailable, but a callee that does
// not reply at all would, without a timeout, hang an otherwise-healthy
// operation forever; grounded on the teacher pack's
// httpClient.Timeout / context.WithTimeout idiom, adapted from an HTTP
// round trip to a channel round trip.
const actorCallTimeout = 5 * time.Second

// ArtifactRecord is the coordinator's authoritative record of one uploaded
// artifact: its chunk count and, for each chunk index, the set of actor
// ids currently recorded as holding it.
//
// Thread-safety:
//   - Only ever read or mutated from the Coordinator's own run goroutine;
//     never shared across goroutines, so it carries no lock.
type ArtifactRecord struct {
	Name       string
	ChunkCount int
	Placement  [][]int
}

type opcode int

const (
	opUpload opcode = iota
	opUpdate
	opDelete
	opGet
	opListArtifacts
	opListStatuses
	opListNodes
	opNodeInfo
	opNodeDown
	opShutdown
)

type request struct {
	op      opcode
	name    string
	content []byte
	actorID int
	reply   chan response
}

type response struct {
	err       error
	content   []byte
	summaries []cluster.ArtifactSummary
	statuses  []cluster.ActorStatus
	nodes     []cluster.ActorInfo
	node      cluster.ActorInfo
}

// Coordinator is the name node: it owns the placement map and serializes
// every client operation and every node-death notification through a
// single mailbox goroutine, so repair can never race an upload (spec §5's
// reentrancy guarantee).
//
// Thread-safety:
//   - Every exported method is safe for concurrent use by any number of
//     goroutines. Each call is a blocking round trip through the
//     coordinator's mailbox; the artifacts map and order slice are never
//     touched outside the run goroutine, so Coordinator itself holds no
//     mutex.
type Coordinator struct {
	cfg       config.Config
	actors    []*actor.Actor
	actorByID map[int]*actor.Actor

	// artifacts and order are only ever touched from the run goroutine.
	artifacts map[string]*ArtifactRecord
	order     []string

	mailbox chan request
	tg      threadgroup.ThreadGroup
	chaos   *ChaosDriver
}

// Start spawns N storage actors with ids 0..N-1, spawns the coordinator
// goroutine, installs the actors' back references to it, and starts the
// chaos driver. This is the core's start() collaborator interface (§6).
//
// Parameters:
//   - cfg: cluster size, replica factor, chunking, and chaos settings
//
// Returns:
//   - a running Coordinator, ready to accept client operations
//   - an error if cfg fails validation
func Start(cfg config.Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.AddContext(err, "invalid config")
	}

	c := &Coordinator{
		cfg:       cfg,
		actors:    make([]*actor.Actor, cfg.N),
		actorByID: make(map[int]*actor.Actor, cfg.N),
		artifacts: make(map[string]*ArtifactRecord),
		mailbox:   make(chan request),
	}

	for i := 0; i < cfg.N; i++ {
		a := actor.New(i, c)
		c.actors[i] = a
		c.actorByID[i] = a
	}

	go c.run()

	maxDead := cfg.MaxDead
	if maxDead <= 0 {
		maxDead = cfg.N / 2
	}
	c.chaos = newChaosDriver(c.actors, cfg.ChaosTick, maxDead)
	if err := c.tg.Add(); err != nil {
		return nil, errors.AddContext(err, "starting coordinator")
	}
	go func() {
		defer c.tg.Done()
		c.chaos.Run(c.tg.StopChan())
	}()

	log.Printf("coordinator started with %d actors, replica_factor=%d, max_chunk_len=%d", cfg.N, cfg.ReplicaFactor, cfg.MaxChunkLen)
	return c, nil
}

func (c *Coordinator) call(req request) response {
	req.reply = make(chan response, 1)
	c.mailbox <- req
	return <-req.reply
}

// NodeDown implements actor.DeathNotifier. It is invoked asynchronously
// from a goroutine a storage actor spawns on its alive->dead transition
// (never from the actor's own dispatch loop), and is
// delivered here as an ordinary serialized coordinator message so it can
// never race an in-flight upload or update.
//
// Parameters:
//   - id: the actor that just transitioned from alive to dead
//
// Thread-safety:
//   - Safe to call from any goroutine; the notification is queued on the
//     coordinator's mailbox like any client call.
func (c *Coordinator) NodeDown(id int) {
	c.call(request{op: opNodeDown, actorID: id})
}

// Upload implements upload(name, content) (§4.2). An existing name is
// replaced, not rejected (§9 open question, resolved).
//
// Parameters:
//   - name: the artifact's name
//   - content: the artifact's full bytes
//
// Returns:
//   - apierrors.ErrCapacityExhausted if no live actor can host a chunk
func (c *Coordinator) Upload(name string, content []byte) error {
	return c.call(request{op: opUpload, name: name, content: content}).err
}

// Update implements update(name, new_content) (§4.2).
//
// Parameters:
//   - name: the artifact to update
//   - content: the replacement bytes
//
// Returns:
//   - apierrors.ErrNotFound if name was never uploaded
//   - apierrors.ErrCapacityExhausted if growth needs a host and none is live
func (c *Coordinator) Update(name string, content []byte) error {
	return c.call(request{op: opUpdate, name: name, content: content}).err
}

// Delete implements delete(name) (§4.3).
//
// Parameters:
//   - name: the artifact to remove
//
// Returns:
//   - apierrors.ErrNotFound if name was never uploaded
func (c *Coordinator) Delete(name string) error {
	return c.call(request{op: opDelete, name: name}).err
}

// Get implements get(name) (§4.3): first-reply-per-chunk, concatenated in
// order.
//
// Parameters:
//   - name: the artifact to read
//
// Returns:
//   - the artifact's full content
//   - apierrors.ErrNotFound if name was never uploaded
//   - apierrors.ErrCalleeUnavailable if any chunk has no reachable replica
func (c *Coordinator) Get(name string) ([]byte, error) {
	resp := c.call(request{op: opGet, name: name})
	return resp.content, resp.err
}

// ListArtifacts implements list_artifacts() (§4.3): every artifact name in
// upload order, paired with its current content.
//
// Returns:
//   - one summary per artifact, in upload order; artifacts whose content
//     cannot currently be assembled are silently omitted
func (c *Coordinator) ListArtifacts() ([]cluster.ArtifactSummary, error) {
	resp := c.call(request{op: opListArtifacts})
	return resp.summaries, resp.err
}

// ListStatuses implements list_statuses() (§4.3).
//
// Returns:
//   - one status per actor, in actor-id order
func (c *Coordinator) ListStatuses() []cluster.ActorStatus {
	return c.call(request{op: opListStatuses}).statuses
}

// ListNodes implements list_nodes() (§4.3).
//
// Returns:
//   - one info record per actor, in actor-id order
func (c *Coordinator) ListNodes() []cluster.ActorInfo {
	return c.call(request{op: opListNodes}).nodes
}

// NodeInfo implements node_info(id) (§4.3).
//
// Parameters:
//   - id: the actor to look up
//
// Returns:
//   - apierrors.ErrNotFound if id does not name a known actor
func (c *Coordinator) NodeInfo(id int) (cluster.ActorInfo, error) {
	resp := c.call(request{op: opNodeInfo, actorID: id})
	return resp.node, resp.err
}

// Shutdown stops the chaos driver, quiesces every actor, and releases the
// coordinator's own goroutine, matching §6's shutdown() contract.
//
// Returns:
//   - the composed error from stopping the chaos thread group and the
//     coordinator's own shutdown message, if either failed
//
// Thread-safety:
//   - Callers must not invoke any other Coordinator method concurrently
//     with Shutdown, nor call Shutdown more than once.
func (c *Coordinator) Shutdown() error {
	tgErr := c.tg.Stop()
	resp := c.call(request{op: opShutdown})
	close(c.mailbox)
	for _, a := range c.actors {
		a.Stop()
	}
	log.Printf("coordinator shut down")
	return errors.Compose(tgErr, resp.err)
}

func (c *Coordinator) run() {
	for req := range c.mailbox {
		switch req.op {
		case opUpload:
			err := c.handleUpload(req.name, req.content)
			req.reply <- response{err: err}

		case opUpdate:
			err := c.handleUpdate(req.name, req.content)
			req.reply <- response{err: err}

		case opDelete:
			err := c.handleDelete(req.name)
			req.reply <- response{err: err}

		case opGet:
			content, err := c.handleGet(req.name)
			req.reply <- response{content: content, err: err}

		case opListArtifacts:
			summaries := c.handleListArtifacts()
			req.reply <- response{summaries: summaries}

		case opListStatuses:
			req.reply <- response{statuses: c.handleListStatuses()}

		case opListNodes:
			req.reply <- response{nodes: c.handleListNodes()}

		case opNodeInfo:
			node, err := c.handleNodeInfo(req.actorID)
			req.reply <- response{node: node, err: err}

		case opNodeDown:
			c.handleNodeDown(req.actorID)
			req.reply <- response{}

		case opShutdown:
			req.reply <- response{}
			return
		}
	}
}

// liveActorsSorted returns sort_live_actors() (§4.2): currently-alive
// actors ordered by ascending chunk_count, ties broken by ascending id.
// exclude, if non-nil, omits the given actor ids from consideration.
func (c *Coordinator) liveActorsSorted(exclude map[int]bool) []*actor.Actor {
	live := make([]*actor.Actor, 0, len(c.actors))
	for _, a := range c.actors {
		if exclude != nil && exclude[a.ID()] {
			continue
		}
		if a.Status() {
			live = append(live, a)
		}
	}
	slices.SortFunc(live, func(x, y *actor.Actor) int {
		cx, cy := x.ChunkCount(), y.ChunkCount()
		if cx != cy {
			return cx - cy
		}
		return x.ID() - y.ID()
	})
	return live
}

func chunkSizeFor(contentLen, maxChunkLen int) int {
	return min(maxChunkLen, max(1, contentLen))
}

func chunkCountFor(contentLen, chunkSize int) int {
	if contentLen == 0 {
		return 0
	}
	return (contentLen + chunkSize - 1) / chunkSize
}

func splitContent(content []byte, chunkSize, count int) [][]byte {
	chunks := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(content))
		chunks[i] = content[start:end]
	}
	return chunks
}

// placeChunk picks min(replica_factor, live_count) actors via
// liveActorsSorted, issues store(name, index, payload) to each
// concurrently, and returns their ids as the new replica set.
func (c *Coordinator) placeChunk(name string, index int, payload []byte, exclude map[int]bool) []int {
	live := c.liveActorsSorted(exclude)
	n := min(c.cfg.ReplicaFactor, len(live))
	chosen := live[:n]

	ids := make([]int, len(chosen))
	var wg sync.WaitGroup
	for i, a := range chosen {
		ids[i] = a.ID()
		wg.Add(1)
		go func(a *actor.Actor) {
			defer wg.Done()
			if err := callErr(actorCallTimeout, func() error { return a.Store(name, index, payload) }); err != nil {
				log.Printf("store chunk %d of %q on actor %d failed: %v", index, name, a.ID(), err)
			}
		}(a)
	}
	wg.Wait()
	return ids
}

func (c *Coordinator) handleUpload(name string, content []byte) error {
	if _, exists := c.artifacts[name]; exists {
		if err := c.handleDelete(name); err != nil {
			return errors.AddContext(err, "replacing existing artifact")
		}
	}

	chunkSize := chunkSizeFor(len(content), c.cfg.MaxChunkLen)
	count := chunkCountFor(len(content), chunkSize)
	if count > 0 && len(c.liveActorsSorted(nil)) == 0 {
		return apierrors.ErrCapacityExhausted
	}

	chunks := splitContent(content, chunkSize, count)
	placement := make([][]int, count)
	var wg sync.WaitGroup
	wg.Add(count)
	for i := 0; i < count; i++ {
		go func(i int) {
			defer wg.Done()
			placement[i] = c.placeChunk(name, i, chunks[i], nil)
		}(i)
	}
	wg.Wait()

	c.artifacts[name] = &ArtifactRecord{Name: name, ChunkCount: count, Placement: placement}
	c.order = append(c.order, name)
	return nil
}

func (c *Coordinator) handleUpdate(name string, content []byte) error {
	rec, ok := c.artifacts[name]
	if !ok {
		return apierrors.NotFoundf(name)
	}

	chunkSize := chunkSizeFor(len(content), c.cfg.MaxChunkLen)
	newCount := chunkCountFor(len(content), chunkSize)
	chunks := splitContent(content, chunkSize, newCount)
	oldCount := rec.ChunkCount

	if newCount < oldCount {
		var wg sync.WaitGroup
		for i := newCount; i < oldCount; i++ {
			for _, id := range rec.Placement[i] {
				a, ok := c.actorByID[id]
				if !ok {
					continue
				}
				wg.Add(1)
				go func(a *actor.Actor, i int) {
					defer wg.Done()
					if err := callErr(actorCallTimeout, func() error { return a.Delete(name, i) }); err != nil {
						log.Printf("delete chunk %d of %q on actor %d failed: %v", i, name, a.ID(), err)
					}
				}(a, i)
			}
		}
		wg.Wait()
		rec.Placement = rec.Placement[:newCount]
	}

	overlap := min(oldCount, newCount)
	var wg sync.WaitGroup
	for i := 0; i < overlap; i++ {
		payload := chunks[i]
		for _, id := range rec.Placement[i] {
			a, ok := c.actorByID[id]
			if !ok {
				continue
			}
			wg.Add(1)
			go func(a *actor.Actor, i int, payload []byte) {
				defer wg.Done()
				if err := callErr(actorCallTimeout, func() error { return a.Update(name, i, payload) }); err != nil {
					log.Printf("update chunk %d of %q on actor %d failed: %v", i, name, a.ID(), err)
				}
			}(a, i, payload)
		}
	}
	wg.Wait()

	if newCount > oldCount {
		if len(c.liveActorsSorted(nil)) == 0 {
			return apierrors.ErrCapacityExhausted
		}
		for i := oldCount; i < newCount; i++ {
			rec.Placement = append(rec.Placement, c.placeChunk(name, i, chunks[i], nil))
		}
	}

	rec.ChunkCount = newCount
	return nil
}

func (c *Coordinator) handleDelete(name string) error {
	rec, ok := c.artifacts[name]
	if !ok {
		return apierrors.NotFoundf(name)
	}

	var wg sync.WaitGroup
	for i, set := range rec.Placement {
		for _, id := range set {
			a, ok := c.actorByID[id]
			if !ok {
				continue
			}
			wg.Add(1)
			go func(a *actor.Actor, i int) {
				defer wg.Done()
				if err := callErr(actorCallTimeout, func() error { return a.Delete(name, i) }); err != nil {
					log.Printf("delete chunk %d of %q on actor %d failed: %v", i, name, a.ID(), err)
				}
			}(a, i)
		}
	}
	wg.Wait()

	delete(c.artifacts, name)
	if idx := slices.IndexFunc(c.order, func(n string) bool { return n == name }); idx >= 0 {
		c.order = append(c.order[:idx], c.order[idx+1:]...)
	}
	return nil
}

func (c *Coordinator) handleGet(name string) ([]byte, error) {
	rec, ok := c.artifacts[name]
	if !ok {
		return nil, apierrors.NotFoundf(name)
	}
	if rec.ChunkCount == 0 {
		return []byte{}, nil
	}

	parts := make([][]byte, rec.ChunkCount)
	for i, set := range rec.Placement {
		payload, err := c.getChunkFirstReply(name, i, set)
		if err != nil {
			return nil, errors.AddContext(apierrors.ErrCalleeUnavailable, fmt.Sprintf("chunk %d of %q unreadable", i, name))
		}
		parts[i] = payload
	}
	return bytes.Join(parts, nil), nil
}

// getChunkFirstReply dispatches get(name, index) to every actor id in ids
// concurrently and returns the first successful reply (§4.3's first-reply
// read), used both by Get and by repair's replicate_chunk.
func (c *Coordinator) getChunkFirstReply(name string, index int, ids []int) ([]byte, error) {
	if len(ids) == 0 {
		return nil, apierrors.ErrCalleeUnavailable
	}

	type result struct {
		payload []byte
		err     error
	}
	results := make(chan result, len(ids))
	for _, id := range ids {
		a, ok := c.actorByID[id]
		if !ok {
			results <- result{err: apierrors.ErrCalleeUnavailable}
			continue
		}
		go func(a *actor.Actor) {
			payload, err := callValue(actorCallTimeout, func() ([]byte, error) { return a.Get(name, index) })
			results <- result{payload: payload, err: err}
		}(a)
	}

	lastErr := error(apierrors.ErrCalleeUnavailable)
	for i := 0; i < len(ids); i++ {
		r := <-results
		if r.err == nil {
			return r.payload, nil
		}
		lastErr = r.err
	}
	return nil, lastErr
}

func (c *Coordinator) handleListArtifacts() []cluster.ArtifactSummary {
	out := make([]cluster.ArtifactSummary, 0, len(c.order))
	for _, name := range c.order {
		content, err := c.handleGet(name)
		if err != nil {
			log.Printf("list_artifacts: skipping %q: %v", name, err)
			continue
		}
		out = append(out, cluster.ArtifactSummary{Name: name, Content: content})
	}
	return out
}

func (c *Coordinator) handleListStatuses() []cluster.ActorStatus {
	out := make([]cluster.ActorStatus, len(c.actors))
	for i, a := range c.actors {
		out[i] = cluster.ActorStatus{ID: a.ID(), Alive: a.Status()}
	}
	return out
}

func actorInfoFrom(a *actor.Actor) cluster.ActorInfo {
	info := a.Info()
	return cluster.ActorInfo{ID: info.ID, Alive: info.Alive, ChunkCount: a.ChunkCount(), Artifacts: info.Entries}
}

func (c *Coordinator) handleListNodes() []cluster.ActorInfo {
	out := make([]cluster.ActorInfo, len(c.actors))
	for i, a := range c.actors {
		out[i] = actorInfoFrom(a)
	}
	return out
}

func (c *Coordinator) handleNodeInfo(id int) (cluster.ActorInfo, error) {
	a, ok := c.actorByID[id]
	if !ok {
		return cluster.ActorInfo{}, errors.AddContext(apierrors.ErrNotFound, fmt.Sprintf("actor %d", id))
	}
	return actorInfoFrom(a), nil
}

// handleNodeDown is node_down(dead_id) (§4.4): remove dead_id from every
// replica set that contains it, repair each affected chunk, then clear
// the dead actor's state so a later revival starts with an honest load
// hint.
func (c *Coordinator) handleNodeDown(deadID int) {
	for _, name := range c.order {
		rec := c.artifacts[name]
		for i := range rec.Placement {
			idx := slices.IndexFunc(rec.Placement[i], func(id int) bool { return id == deadID })
			if idx < 0 {
				continue
			}
			rec.Placement[i] = append(rec.Placement[i][:idx], rec.Placement[i][idx+1:]...)
			c.repairChunk(name, i, rec)
		}
	}

	if a, ok := c.actorByID[deadID]; ok {
		if err := callErr(actorCallTimeout, func() error { a.Clear(); return nil }); err != nil {
			log.Printf("clearing dead actor %d failed: %v", deadID, err)
		}
	}
}

// repairChunk is replicate_chunk (§4.4), iterated until the replica set is
// restored to replica_factor or no eligible host remains (§9 open
// question, resolved: iterate rather than stop after one host).
func (c *Coordinator) repairChunk(name string, index int, rec *ArtifactRecord) {
	for len(rec.Placement[index]) < c.cfg.ReplicaFactor {
		exclude := make(map[int]bool, len(rec.Placement[index]))
		for _, id := range rec.Placement[index] {
			exclude[id] = true
		}

		live := c.liveActorsSorted(exclude)
		if len(live) == 0 {
			log.Printf("repair: no eligible host left for chunk %d of %q, replica set at %d/%d", index, name, len(rec.Placement[index]), c.cfg.ReplicaFactor)
			return
		}
		host := live[0]

		payload, err := c.getChunkFirstReply(name, index, rec.Placement[index])
		if err != nil {
			log.Printf("repair: could not fetch chunk %d of %q from any surviving replica: %v", index, name, err)
			return
		}

		if err := callErr(actorCallTimeout, func() error { return host.Store(name, index, payload) }); err != nil {
			log.Printf("repair: store chunk %d of %q on actor %d failed: %v", index, name, host.ID(), err)
			return
		}
		rec.Placement[index] = append(rec.Placement[index], host.ID())
	}
}

// callErr runs fn under a context bound to timeout, converting a stuck
// callee into CalleeUnavailable rather than hanging the coordinator's
// single-threaded mailbox forever.
func callErr(timeout time.Duration, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return apierrors.ErrCalleeUnavailable
	}
}

func callValue[T any](timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, apierrors.ErrCalleeUnavailable
	}
}
