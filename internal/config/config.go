// Package config supplies the runtime's tunables: space sizes, worker
// counts, and allocation thresholds, loadable from a TOML file with
// defaults matching the original runtime's config.rs.
package config

import (
	"github.com/BurntSushi/toml"
)

// Config holds every tunable the runtime driver needs before it
// constructs the scheduler, GC pool, and permanent space.
type Config struct {
	// PermanentSize is the size in bytes of the permanent space
	// holding prototypes and interned strings.
	PermanentSize int64 `toml:"permanent_size"`

	// YoungSize and OldSize bound the per-process generational spaces
	// used by the copying collector.
	YoungSize int64 `toml:"young_size"`
	OldSize   int64 `toml:"old_size"`

	// SchedulerWorkers is the number of OS-thread-backed scheduler
	// workers (one work-stealing deque each).
	SchedulerWorkers int `toml:"scheduler_workers"`

	// GCWorkers is the number of goroutines available to the
	// incremental collector's parallel root-scan phase.
	GCWorkers int `toml:"gc_workers"`

	// ReductionsPerSlice bounds how many reductions (Safepoint
	// instructions, and Returns that pop back to a parent context) a
	// process runs before yielding at the next safepoint, independent
	// of GC pressure.
	ReductionsPerSlice int `toml:"reductions_per_slice"`

	// YoungThreshold and MatureThreshold are the dynamic
	// allocated-byte thresholds that escalate a young collection into
	// an old one, and that trigger a major incremental cycle.
	YoungThreshold  int64 `toml:"young_threshold"`
	MatureThreshold int64 `toml:"mature_threshold"`
}

const (
	defaultPermanentSize = 2 << 20 // 2MiB, matches config.rs
	defaultYoungSize     = 4 << 20 // 4MiB
	defaultOldSize       = 2 << 20 // 2MiB
)

// Default returns the runtime's baseline configuration.
func Default() Config {
	return Config{
		PermanentSize:      defaultPermanentSize,
		YoungSize:          defaultYoungSize,
		OldSize:            defaultOldSize,
		SchedulerWorkers:   4,
		GCWorkers:          2,
		ReductionsPerSlice: 1000,
		YoungThreshold:     defaultYoungSize / 2,
		MatureThreshold:    defaultOldSize / 2,
	}
}

// Load reads a TOML config file, applying it on top of Default so an
// omitted field keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
