package roidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTargetsEmptyGroundTruth(t *testing.T) {
	grid, err := BoxMatrix([]float32{0, 0, 10, 10, 20, 20, 40, 40})
	require.NoError(t, err)

	targets := ComputeTargets(grid, nil, nil, nil, DefaultConfig())

	assert.Equal(t, []int{2, 5}, []int(targets.Shape()), "targets should be sized to the grid")
	assert.Equal(t, make([]float32, 10), targets.Data().([]float32), "an image without ground truth yields all-background targets")
}

func TestComputeTargetsScenario(t *testing.T) {
	// One ground-truth box at (10,10,50,50), class 2. Grid box 0 clears
	// the threshold with overlap 0.7; grid box 1 stays background at 0.2.
	grid, err := BoxMatrix([]float32{
		8, 12, 48, 52,
		100, 100, 140, 140,
	})
	require.NoError(t, err)
	boxesAll, err := BoxMatrix([]float32{10, 10, 50, 50})
	require.NoError(t, err)
	overlaps := denseF32(2, 1, []float32{0.7, 0.2})

	targets := ComputeTargets(grid, boxesAll, overlaps, []int{2}, DefaultConfig())
	data := targets.Data().([]float32)

	// Grid box 0: width/height 40, center (28, 32); ground truth center
	// (30, 30), same size.
	assert.InDelta(t, 2, data[0], 1e-6, "class label")
	assert.InDelta(t, 0.05, data[1], 1e-6, "dx")
	assert.InDelta(t, -0.05, data[2], 1e-6, "dy")
	assert.InDelta(t, 0, data[3], 1e-6, "dw")
	assert.InDelta(t, 0, data[4], 1e-6, "dh")

	assert.Equal(t, make([]float32, 5), data[5:10], "below-threshold grid box stays background")
}

func TestComputeTargetsThresholdGating(t *testing.T) {
	grid, err := BoxMatrix([]float32{0, 0, 10, 10, 0, 0, 10, 10})
	require.NoError(t, err)
	boxesAll, err := BoxMatrix([]float32{2, 2, 12, 12})
	require.NoError(t, err)
	// 0.49 is strictly below the threshold, 0.5 meets it.
	overlaps := denseF32(2, 1, []float32{0.49, 0.5})

	targets := ComputeTargets(grid, boxesAll, overlaps, []int{3}, DefaultConfig())
	data := targets.Data().([]float32)

	assert.Equal(t, make([]float32, 5), data[0:5], "overlap below threshold must stay class 0 with zero deltas")
	assert.Equal(t, float32(3), data[5], "overlap meeting the threshold becomes foreground")
	assert.NotZero(t, data[6], "foreground row carries deltas")
}

func TestComputeTargetsTieBreakPicksFirstCandidate(t *testing.T) {
	grid, err := BoxMatrix([]float32{0, 0, 10, 10})
	require.NoError(t, err)
	boxesAll, err := BoxMatrix([]float32{
		1, 0, 11, 10,
		3, 0, 13, 10,
	})
	require.NoError(t, err)
	overlaps := denseF32(1, 2, []float32{0.8, 0.8})

	targets := ComputeTargets(grid, boxesAll, overlaps, []int{1, 2}, DefaultConfig())
	data := targets.Data().([]float32)

	assert.Equal(t, float32(1), data[0], "the first maximal candidate column should win")
	assert.InDelta(t, 0.1, data[1], 1e-6, "deltas should come from the first candidate's box")
}

func TestTileClasses(t *testing.T) {
	assert.Equal(t, []int{2, 7, 2, 7, 2, 7}, tileClasses([]int{2, 7}, 3))
	assert.Empty(t, tileClasses(nil, 2))
}
