package prefixtable

import "github.com/go-logr/logr"

const (
	// DefaultInitialCapacity is the record capacity a Builder starts with.
	DefaultInitialCapacity = 1024

	// DefaultGrowthFactor multiplies the capacity whenever storage is full.
	DefaultGrowthFactor = 2

	// DefaultMaxLineLength is the longest route line ReadFrom accepts, in bytes
	// (line terminator excluded).
	DefaultMaxLineLength = 4096
)

// RejectFunc receives the raw text of each route line the Builder rejects.
type RejectFunc func(line string, err error)

// BuildOption is a functional option for configuring a Builder.
type BuildOption func(*buildConfig)

type buildConfig struct {
	initialCapacity int
	growthFactor    int
	maxLineLength   int
	onReject        RejectFunc
	logger          logr.Logger
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		initialCapacity: DefaultInitialCapacity,
		growthFactor:    DefaultGrowthFactor,
		maxLineLength:   DefaultMaxLineLength,
		logger:          logr.Discard(),
	}
}

// WithInitialCapacity sets the number of records allocated up front.
func WithInitialCapacity(n int) BuildOption {
	return func(c *buildConfig) {
		c.initialCapacity = n
	}
}

// WithGrowthFactor sets the capacity multiplier applied when storage is full.
func WithGrowthFactor(f int) BuildOption {
	return func(c *buildConfig) {
		c.growthFactor = f
	}
}

// WithMaxLineLength sets the longest accepted route line in bytes.
// Longer lines are rejected whole; values below 1 restore the default.
func WithMaxLineLength(n int) BuildOption {
	return func(c *buildConfig) {
		if n < 1 {
			n = DefaultMaxLineLength
		}
		c.maxLineLength = n
	}
}

// WithRejectHandler installs a callback for rejected route lines.
func WithRejectHandler(fn RejectFunc) BuildOption {
	return func(c *buildConfig) {
		c.onReject = fn
	}
}

// WithLogger sets the logger used for build diagnostics.
// Rejected lines are logged at V(1), storage growth at V(2).
func WithLogger(logger logr.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

// OpenOption is a functional option for Open, OpenFile, OpenBytes and ReadTable.
type OpenOption func(*openConfig)

type openConfig struct {
	resort bool
}

// WithResort accepts table files whose records are out of prefix order and
// sorts a private copy at load time. Without it such files fail with
// ErrUnsortedTable, since the search gives wrong answers on them.
func WithResort() OpenOption {
	return func(c *openConfig) {
		c.resort = true
	}
}
