package roidb

import (
	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// ComputeTargets derives the bounding-box regression targets for a single
// image: one [class, dx, dy, dw, dh] row per evaluation-grid box. Grid
// boxes whose best overlap with a candidate box reaches cfg.BBoxThresh
// are paired with that candidate and get translation deltas relative to
// the grid box size plus log-space scale deltas; everything else stays a
// background row of exact zeros.
//
// Arguments:
//   - gridBoxes: The corpus-global N×4 evaluation grid.
//   - boxesAll: This image's M×4 candidate (ground-truth-plus-extra) boxes.
//   - gridOverlaps: Dense N×M overlap of grid against candidates. A nil
//     matrix, or one with zero candidate columns, stands for an image with
//     no usable ground truth and yields an all-zero target matrix.
//   - gtClassesAll: Class id per candidate box, already tiled across
//     scales to BoxesAll order.
//   - cfg: Pass configuration; nil selects DefaultConfig.
//
// Returns:
//   - The N×5 dense target matrix.
func ComputeTargets(gridBoxes, boxesAll, gridOverlaps *tensor.Dense, gtClassesAll []int, cfg *Config) *tensor.Dense {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	n := gridBoxes.Shape()[0]
	targets := make([]float32, n*5)
	if gridOverlaps == nil || gridOverlaps.Shape()[1] == 0 {
		return tensor.New(tensor.WithShape(n, 5), tensor.WithBacking(targets))
	}

	cols := gridOverlaps.Shape()[1]
	maxOverlaps, argmaxes := rowMaxArgmax(gridOverlaps.Data().([]float32), n, cols)

	grid := gridBoxes.Data().([]float32)
	all := boxesAll.Data().([]float32)
	eps := cfg.Eps

	for i := 0; i < n; i++ {
		if maxOverlaps[i] < cfg.BBoxThresh {
			continue
		}
		g := argmaxes[i]

		exWidth := grid[i*4+2] - grid[i*4+0] + eps
		exHeight := grid[i*4+3] - grid[i*4+1] + eps
		exCtrX := grid[i*4+0] + 0.5*exWidth
		exCtrY := grid[i*4+1] + 0.5*exHeight

		gtWidth := all[g*4+2] - all[g*4+0] + eps
		gtHeight := all[g*4+3] - all[g*4+1] + eps
		gtCtrX := all[g*4+0] + 0.5*gtWidth
		gtCtrY := all[g*4+1] + 0.5*gtHeight

		targets[i*5+0] = float32(gtClassesAll[g])
		targets[i*5+1] = (gtCtrX - exCtrX) / exWidth
		targets[i*5+2] = (gtCtrY - exCtrY) / exHeight
		targets[i*5+3] = math32.Log(gtWidth / exWidth)
		targets[i*5+4] = math32.Log(gtHeight / exHeight)
	}
	return tensor.New(tensor.WithShape(n, 5), tensor.WithBacking(targets))
}

// tileClasses repeats the per-instance class list once per evaluated
// scale so class ids line up with the scale-tiled BoxesAll rows.
func tileClasses(classes []int, tiles int) []int {
	tiled := make([]int, 0, len(classes)*tiles)
	for t := 0; t < tiles; t++ {
		tiled = append(tiled, classes...)
	}
	return tiled
}
