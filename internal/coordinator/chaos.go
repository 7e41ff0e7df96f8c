package coordinator

import (
	"log"
	"time"

	"github.com/NebulousLabs/fastrand"

	"github.com/dreamware/blobvault/internal/actor"
)

// ChaosDriver is the fault-injection loop of §4.5: every tick it picks a
// uniformly random actor and toggles its liveness, subject to a cap on how
// many actors may be concurrently dead. It exists to exercise the repair
// path, grounded on the teacher pack's HealthMonitor ticker-loop shape
// (time.Ticker plus a shutdown channel) with math/rand replaced by
// fastrand, the pack's own lock-free random source.
// Thread-safety:
//   - A ChaosDriver is only ever driven by the single goroutine running
//     Run (or, in tests, by a single caller driving tick() directly); it
//     carries no lock because it has no concurrent caller.
type ChaosDriver struct {
	actors   []*actor.Actor
	interval time.Duration
	maxDead  int
	dead     int
}

func newChaosDriver(actors []*actor.Actor, interval time.Duration, maxDead int) *ChaosDriver {
	return &ChaosDriver{actors: actors, interval: interval, maxDead: maxDead}
}

// Run executes the chaos loop until stopChan is closed. It is meant to run
// in its own goroutine, registered with the coordinator's threadgroup so
// shutdown() can wait for it to exit promptly (§9's "chaos loop... must
// exit promptly when shutdown() is invoked").
//
// Parameters:
//   - stopChan: closed to request an orderly exit; Run returns immediately
//     if d has no actors, without ever reading stopChan
//
// Thread-safety:
//   - Run must not be called concurrently with another Run on the same
//     ChaosDriver, nor alongside direct calls to tick().
func (d *ChaosDriver) Run(stopChan <-chan struct{}) {
	if len(d.actors) == 0 {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Printf("chaos driver started with interval %v, max_dead=%d", d.interval, d.maxDead)

	for {
		select {
		case <-ticker.C:
			d.tick()
		case <-stopChan:
			log.Printf("chaos driver stopping")
			return
		}
	}
}

func (d *ChaosDriver) tick() {
	target := d.actors[fastrand.Intn(len(d.actors))]

	if target.Status() {
		if d.dead >= d.maxDead {
			return
		}
		target.Toggle()
		d.dead++
		log.Printf("chaos driver killed actor %d (%d/%d dead)", target.ID(), d.dead, d.maxDead)
		return
	}

	target.Toggle()
	d.dead--
	log.Printf("chaos driver revived actor %d (%d/%d dead)", target.ID(), d.dead, d.maxDead)
}
