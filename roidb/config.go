package roidb

import "runtime"

// Config holds the numeric constants and pool sizing for both passes.
type Config struct {
	// Eps guards degenerate zero-width boxes in the delta math and seeds
	// the per-class example counts so a class with no examples anywhere
	// in the corpus still yields finite statistics.
	Eps float32
	// BBoxThresh is the minimum best overlap a grid box needs to receive
	// a foreground regression target. Boxes below it stay background.
	BBoxThresh float32
	// Scales lists the scale multipliers the evaluation grid was
	// enumerated over. Only its length matters here: ground-truth
	// classes are tiled once per scale to line up with BoxesAll.
	Scales []int
	// Workers bounds the per-image goroutine pool. Values below 1 fall
	// back to sequential execution.
	Workers int
}

// DefaultConfig returns the standard training configuration.
func DefaultConfig() *Config {
	return &Config{
		Eps:        1e-14,
		BBoxThresh: 0.5,
		Scales:     []int{600},
		Workers:    runtime.NumCPU(),
	}
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 1
}

func (c *Config) tiles() int {
	if len(c.Scales) > 0 {
		return len(c.Scales)
	}
	return 1
}
