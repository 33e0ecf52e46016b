// Package config holds the JSON-configurable simulation parameters: the
// safety cycle bound, main-memory latency, and cache tag-check latency.
//
// Everything else about the machine (register count, cache geometry, block
// size) is an architectural constant, not a tunable, and lives in isa/mesi
// as untyped constants — only the handful of values original_source's
// author actually varied across revisions are exposed here, matching the
// teacher's timing/latency.TimingConfig shape.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// SimConfig holds tunable simulation parameters.
type SimConfig struct {
	// SafetyCycleBound is the maximum number of cycles the top-level driver
	// will run before declaring a simulation overrun. Default: 500000.
	SafetyCycleBound uint64 `json:"safety_cycle_bound"`

	// MemoryLatency is the number of cycles main memory counts down after
	// observing a BusRd/BusRdX before it asks for the bus to start its
	// burst. Default: 16.
	MemoryLatency uint64 `json:"memory_latency"`

	// TagCheckLatency is the one-cycle (by default) SRAM tag-check delay
	// imposed on the first observation of a cache miss, before the pending
	// miss address is registered. Default: 1.
	TagCheckLatency uint64 `json:"tag_check_latency"`
}

// Default returns the spec-mandated default configuration.
func Default() *SimConfig {
	return &SimConfig{
		SafetyCycleBound: 500000,
		MemoryLatency:    16,
		TagCheckLatency:  1,
	}
}

// Load reads a JSON-encoded SimConfig from path using fs. Fields absent
// from the file keep their Default() value.
func Load(fs afero.Fs, path string) (*SimConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}
