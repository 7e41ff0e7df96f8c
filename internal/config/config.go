// Package config loads the coordinator's tunables from a YAML file, with
// defaults matching spec §6 when the file is partial or absent.
package config

import (
	"os"
	"time"

	"github.com/NebulousLabs/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the cluster-wide tunables the coordinator is bootstrapped
// with. Defaults and Load always return a fully-populated Config; the one
// zero value the coordinator fills in itself is MaxDead (see below).
type Config struct {
	// N is the number of storage actors to spawn at bootstrap.
	N int `yaml:"n"`

	// MaxChunkLen is the largest a single chunk's payload may be.
	MaxChunkLen int `yaml:"max_chunk_len"`

	// ReplicaFactor is the target number of live replicas per chunk. Must
	// be <= N.
	ReplicaFactor int `yaml:"replica_factor"`

	// ChaosTick is how often the chaos driver considers toggling an
	// actor.
	ChaosTick time.Duration `yaml:"chaos_tick"`

	// MaxDead caps the number of actors the chaos driver will allow to be
	// concurrently dead. Zero means "compute floor(N/2) at Start time".
	MaxDead int `yaml:"max_dead"`
}

// Defaults returns the configuration spec §6 specifies when no file is
// supplied: N=15, max_chunk_len=3, replica_factor=3, chaos_tick=15s,
// max_dead=floor(N/2).
func Defaults() Config {
	return Config{
		N:             15,
		MaxChunkLen:   3,
		ReplicaFactor: 3,
		ChaosTick:     15 * time.Second,
		MaxDead:       7,
	}
}

// Load reads a YAML config file at path and overlays it on Defaults();
// fields absent from the file keep their default value. An empty path
// returns Defaults() unchanged.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.AddContext(err, "reading config file")
	}

	// Decode into a fresh zero-valued struct and copy over only its
	// non-zero fields: a field that is absent from the file, or set to zero
	// in it, keeps its default.
	var overlay Config
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return Config{}, errors.AddContext(err, "parsing config file")
	}

	if overlay.N != 0 {
		cfg.N = overlay.N
	}
	if overlay.MaxChunkLen != 0 {
		cfg.MaxChunkLen = overlay.MaxChunkLen
	}
	if overlay.ReplicaFactor != 0 {
		cfg.ReplicaFactor = overlay.ReplicaFactor
	}
	if overlay.ChaosTick != 0 {
		cfg.ChaosTick = overlay.ChaosTick
	}
	if overlay.MaxDead != 0 {
		cfg.MaxDead = overlay.MaxDead
	}

	return cfg, cfg.Validate()
}

// Validate checks the invariants spec §3 requires of a Config.
func (c Config) Validate() error {
	if c.N <= 0 {
		return errors.New("n must be positive")
	}
	if c.ReplicaFactor <= 0 || c.ReplicaFactor > c.N {
		return errors.New("replica_factor must be in [1, n]")
	}
	if c.MaxChunkLen <= 0 {
		return errors.New("max_chunk_len must be positive")
	}
	return nil
}
