// Package config holds the core runtime's configuration value. Parsing
// config files or environment variables is out of scope for the core: the
// runtime takes an already-constructed Config from its caller.
package config

import (
	"time"

	"github.com/marmos91/pvfsgo/internal/bytesize"
)

// JobConfig bounds the job engine's context table and timeout behavior.
type JobConfig struct {
	// MaxContexts caps the number of concurrently open job-engine contexts.
	MaxContexts int

	// DefaultTimeout is applied to posted network/flow jobs that specify no
	// deadline of their own.
	DefaultTimeout time.Duration

	// Threaded records the configured concurrency mode. The job engine has a
	// single implementation that waits on channels in every test* call; this
	// value is carried in the configuration and does not change how they wait.
	Threaded bool
}

// SchedulerConfig bounds the request scheduler.
type SchedulerConfig struct {
	// ModePollInterval is how often the mode gate re-checks the scheduled
	// count while a transition to admin mode is pending.
	ModePollInterval time.Duration
}

// MessagePairConfig bounds message-pair array retry behavior.
type MessagePairConfig struct {
	RetryLimit int
	RetryDelay time.Duration
}

// PrecreatePoolConfig bounds precreate-pool handle management.
type PrecreatePoolConfig struct {
	// LowWaterMark is the default per-pool threshold for pool_check_level: a
	// pool holding fewer handles is reported low at once, and at or above it
	// callers park until consumers drain the pool below it. The engine does
	// not read this field; PrecreatePoolCheckLevel takes its threshold as an
	// argument.
	LowWaterMark int

	// BatchSize is the configured number of handles per pool_fill batch. The
	// engine does not read it; PrecreatePoolFill writes whatever slice it is
	// given.
	BatchSize int
}

// BufferPoolConfig sizes the tiered send/receive buffer pool backing the
// codec.
type BufferPoolConfig struct {
	SmallSize  bytesize.ByteSize
	MediumSize bytesize.ByteSize
	LargeSize  bytesize.ByteSize
}

// Config is the core runtime's top-level configuration value.
type Config struct {
	Jobs          JobConfig
	Scheduler     SchedulerConfig
	MessagePair   MessagePairConfig
	PrecreatePool PrecreatePoolConfig
	BufferPool    BufferPoolConfig
}

// ApplyDefaults fills any zero-valued fields of cfg with sensible defaults.
// Explicitly-set (non-zero) values are preserved.
func ApplyDefaults(cfg *Config) {
	applyJobDefaults(&cfg.Jobs)
	applySchedulerDefaults(&cfg.Scheduler)
	applyMessagePairDefaults(&cfg.MessagePair)
	applyPrecreatePoolDefaults(&cfg.PrecreatePool)
	applyBufferPoolDefaults(&cfg.BufferPool)
}

func applyJobDefaults(cfg *JobConfig) {
	if cfg.MaxContexts == 0 {
		cfg.MaxContexts = 16
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	// Threaded defaults to false; the zero value already selects it, and the
	// engine does not read it.
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.ModePollInterval == 0 {
		cfg.ModePollInterval = 50 * time.Millisecond
	}
}

func applyMessagePairDefaults(cfg *MessagePairConfig) {
	if cfg.RetryLimit == 0 {
		cfg.RetryLimit = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
}

func applyPrecreatePoolDefaults(cfg *PrecreatePoolConfig) {
	if cfg.LowWaterMark == 0 {
		cfg.LowWaterMark = 16
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 64
	}
}

func applyBufferPoolDefaults(cfg *BufferPoolConfig) {
	if cfg.SmallSize == 0 {
		cfg.SmallSize = bytesize.ByteSize(4 * bytesize.KiB)
	}
	if cfg.MediumSize == 0 {
		cfg.MediumSize = bytesize.ByteSize(64 * bytesize.KiB)
	}
	if cfg.LargeSize == 0 {
		cfg.LargeSize = bytesize.ByteSize(1 * bytesize.MiB)
	}
}

// Default returns a Config with every field set to its default value.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
