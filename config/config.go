package config

import "fmt"

// Default sizes mirror the original server's DiskCheckpoint/Backup
// defaults: a 16MiB data buffer, 4MiB log buffer, 32KiB..256KiB write
// window, synced every 4MiB, throttled to 2MiB per period.
const (
	DefaultDataBufferSize = 16 * 1024 * 1024 / 4 // words (32-bit)
	DefaultLogBufferSize  = 4 * 1024 * 1024 / 4
	DefaultMinWriteSize   = 32 * 1024 / 4
	DefaultMaxWriteSize   = 256 * 1024 / 4
	DefaultDiskSyncSize   = 4 * 1024 * 1024
	DefaultDiskWriteSpeed = 2 * 1024 * 1024 / 4
)

// Config holds one node's backup subsystem configuration (spec §6.4).
type Config struct {
	DataBufferSize int // words
	LogBufferSize  int // words
	MinWriteSize   int // words
	MaxWriteSize   int // words
	DiskSyncSize   int // bytes
	DiskWriteSpeed int // words per WriteRateGovernor period

	CompressedBackup bool
	ODirect          bool
	Diskless         bool
}

// Option configures a Config at construction, following the
// writerate.Option functional-options convention.
type Option func(*Config)

func WithDataBufferSize(words int) Option {
	return func(c *Config) { c.DataBufferSize = words }
}

func WithLogBufferSize(words int) Option {
	return func(c *Config) { c.LogBufferSize = words }
}

func WithWriteSizeBounds(minWords, maxWords int) Option {
	return func(c *Config) {
		c.MinWriteSize = minWords
		c.MaxWriteSize = maxWords
	}
}

func WithDiskSyncSize(bytes int) Option {
	return func(c *Config) { c.DiskSyncSize = bytes }
}

func WithDiskWriteSpeed(wordsPerPeriod int) Option {
	return func(c *Config) { c.DiskWriteSpeed = wordsPerPeriod }
}

func WithCompressedBackup(enabled bool) Option {
	return func(c *Config) { c.CompressedBackup = enabled }
}

func WithODirect(enabled bool) Option {
	return func(c *Config) { c.ODirect = enabled }
}

func WithDiskless(enabled bool) Option {
	return func(c *Config) { c.Diskless = enabled }
}

// New builds a Config from the defaults above, applying opts in order.
func New(opts ...Option) *Config {
	c := &Config{
		DataBufferSize: DefaultDataBufferSize,
		LogBufferSize:  DefaultLogBufferSize,
		MinWriteSize:   DefaultMinWriteSize,
		MaxWriteSize:   DefaultMaxWriteSize,
		DiskSyncSize:   DefaultDiskSyncSize,
		DiskWriteSpeed: DefaultDiskWriteSpeed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate reports a ConfigRejection-flavored error (spec §7) for any
// combination that FlowBuffer.Setup or the governor could not act on.
func (c *Config) Validate() error {
	if c.DataBufferSize <= 0 || c.LogBufferSize <= 0 {
		return fmt.Errorf("config: buffer sizes must be positive")
	}
	if c.MinWriteSize <= 0 || c.MaxWriteSize < c.MinWriteSize {
		return fmt.Errorf("config: invalid write-size bounds [%d,%d]", c.MinWriteSize, c.MaxWriteSize)
	}
	if c.DiskWriteSpeed <= 0 {
		return fmt.Errorf("config: disk write speed must be positive")
	}
	return nil
}

// Live applies a dump/diagnostic-command config change (spec §6.5:
// "alter buffer sizes live"). Any option may be applied; a running
// FlowBuffer is never resized, so buffer sizes take effect on the next
// file, not the current one.
func (c *Config) Live(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
