// Package integration exercises the coordinator end to end, in-process,
// through its public API: chunking and updates, deletion, an empty
// artifact, a larger cluster, and reads that keep succeeding while the
// chaos driver kills and revives actors (survival across actor death, P5).
// Replica counts after repair are not inspected here; the white-box
// coordinator tests check those.
package integration

import (
	"bytes"
	"testing"
	"time"

	"github.com/dreamware/blobvault/internal/config"
	"github.com/dreamware/blobvault/internal/coordinator"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.N = 6
	cfg.MaxChunkLen = 3
	cfg.ReplicaFactor = 3
	cfg.ChaosTick = time.Hour // disable the chaos driver for deterministic tests
	return cfg
}

func settle() {
	time.Sleep(20 * time.Millisecond)
}

func TestRepairScenarioViaChaosDriver(t *testing.T) {
	cfg := testConfig()
	cfg.ChaosTick = 10 * time.Millisecond
	cfg.MaxDead = 2

	coord, err := coordinator.Start(cfg)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer coord.Shutdown()

	if err := coord.Upload("a", []byte("hello")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		content, err := coord.Get("a")
		if err != nil {
			t.Fatalf("get failed mid-chaos: %v", err)
		}
		if !bytes.Equal(content, []byte("hello")) {
			t.Fatalf("expected 'hello', got %q", content)
		}
		time.Sleep(15 * time.Millisecond)
	}
}

func TestChunkingScenario(t *testing.T) {
	coord, err := coordinator.Start(testConfig())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer coord.Shutdown()

	if err := coord.Upload("a", []byte("hello")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	settle()

	content, err := coord.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(content) != "hello" {
		t.Fatalf("expected 'hello', got %q", content)
	}

	if err := coord.Update("a", []byte("hi")); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	content, err = coord.Get("a")
	if err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if string(content) != "hi" {
		t.Fatalf("expected 'hi', got %q", content)
	}

	if err := coord.Update("a", []byte("abcdefghijkl")); err != nil {
		t.Fatalf("grow update failed: %v", err)
	}
	content, err = coord.Get("a")
	if err != nil {
		t.Fatalf("get after grow failed: %v", err)
	}
	if string(content) != "abcdefghijkl" {
		t.Fatalf("expected 'abcdefghijkl', got %q", content)
	}
}

func TestEmptyArtifact(t *testing.T) {
	coord, err := coordinator.Start(testConfig())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer coord.Shutdown()

	if err := coord.Upload("empty", nil); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	content, err := coord.Get("empty")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(content) != 0 {
		t.Fatalf("expected empty content, got %q", content)
	}
}

func TestDeleteThenNotFound(t *testing.T) {
	coord, err := coordinator.Start(testConfig())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer coord.Shutdown()

	if err := coord.Upload("gone", []byte("x")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if err := coord.Delete("gone"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := coord.Get("gone"); err == nil {
		t.Fatalf("expected NotFound after delete")
	}
}

func TestLargeClusterServesReads(t *testing.T) {
	cfg := testConfig()
	cfg.N = 15
	cfg.ReplicaFactor = 3
	cfg.ChaosTick = time.Hour

	coord, err := coordinator.Start(cfg)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer coord.Shutdown()

	if err := coord.Upload("q", []byte("q")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	content, err := coord.Get("q")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(content) != "q" {
		t.Fatalf("expected 'q', got %q", content)
	}
}
