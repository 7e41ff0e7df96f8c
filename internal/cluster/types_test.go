package cluster

import (
	"encoding/json"
	"testing"
)

func TestActorInfoJSON(t *testing.T) {
	info := ActorInfo{
		ID:         2,
		Alive:      true,
		ChunkCount: 4,
		Artifacts:  map[string][]int{"a": {0, 1}},
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded ActorInfo
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.ID != info.ID || decoded.Alive != info.Alive || decoded.ChunkCount != info.ChunkCount {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, info)
	}
	if len(decoded.Artifacts["a"]) != 2 {
		t.Errorf("expected 2 indices for 'a', got %v", decoded.Artifacts["a"])
	}
}

func TestActorStatusJSON(t *testing.T) {
	status := ActorStatus{ID: 5, Alive: false}

	data, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded ActorStatus
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded != status {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, status)
	}
}

func TestArtifactSummaryJSON(t *testing.T) {
	summary := ArtifactSummary{Name: "a", Content: []byte("hello")}

	data, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded ArtifactSummary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Name != summary.Name || string(decoded.Content) != string(summary.Content) {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, summary)
	}
}
