package roidb

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// classAccumulator gathers, per foreground class, the example count and
// the running sums needed for the sum-of-squares variance identity
// var(x) = E(x²) - E(x)². Accumulation runs in float64 so corpus-scale
// sums do not lose the low bits of the float32 deltas. Counts are seeded
// with a small epsilon, keeping the mean and std of a class with no
// examples anywhere in the corpus finite instead of NaN.
type classAccumulator struct {
	numClasses  int
	counts      []float64
	sums        []float64
	squaredSums []float64
}

func newClassAccumulator(numClasses int, eps float32) *classAccumulator {
	acc := &classAccumulator{
		numClasses:  numClasses,
		counts:      make([]float64, numClasses),
		sums:        make([]float64, numClasses*4),
		squaredSums: make([]float64, numClasses*4),
	}
	for cls := range acc.counts {
		acc.counts[cls] = float64(eps)
	}
	return acc
}

// add folds one image's raw target matrix into the running sums. Class 0
// rows carry no signal and are excluded.
func (a *classAccumulator) add(targets []float32, rows int) error {
	for i := 0; i < rows; i++ {
		cls := int(targets[i*5])
		if cls == 0 {
			continue
		}
		if cls < 0 || cls >= a.numClasses {
			return errors.Errorf("roidb: target class %d outside [0, %d)", cls, a.numClasses)
		}
		a.counts[cls]++
		for k := 0; k < 4; k++ {
			v := float64(targets[i*5+1+k])
			a.sums[cls*4+k] += v
			a.squaredSums[cls*4+k] += v * v
		}
	}
	return nil
}

// moments finalizes the flattened numClasses×4 mean and std tables. The
// variance is clamped at zero before the square root; floating-point
// cancellation can push it slightly negative for near-constant classes.
func (a *classAccumulator) moments() (means, stds []float32) {
	means = make([]float32, a.numClasses*4)
	stds = make([]float32, a.numClasses*4)
	for cls := 1; cls < a.numClasses; cls++ {
		for k := 0; k < 4; k++ {
			mean := a.sums[cls*4+k] / a.counts[cls]
			variance := a.squaredSums[cls*4+k]/a.counts[cls] - mean*mean
			if variance < 0 {
				variance = 0
			}
			means[cls*4+k] = float32(mean)
			stds[cls*4+k] = float32(math.Sqrt(variance))
		}
	}
	return means, stds
}

// AddBBoxRegressionTargets computes bounding-box regression targets for
// every image and standardizes them per class across the whole corpus.
//
// The pass has a global data dependency: per-image targets are derived
// first (in parallel, one goroutine per image behind a bounded pool),
// then per-class means and standard deviations are accumulated over
// every image's raw targets, and only then is each image rewritten in
// normalized form and compressed to sparse storage. It cannot stream.
//
// Arguments:
//   - db: The image database. Prepare must have run first; the derived
//     assignment fields are a hard precondition, not a convention.
//   - gridBoxes: The corpus-global N×4 evaluation grid.
//   - cfg: Pass configuration; nil selects DefaultConfig.
//
// Returns:
//   - means, stds: Flattened numClasses×4 per-class statistics of the raw
//     deltas (class 0 row present but zero, keeping indices aligned). The
//     caller must persist them: inference-time denormalization is
//     raw = normalized*std[cls] + mean[cls].
//   - An error on a missing precondition or malformed record; degenerate
//     data conditions (empty ground truth, empty or zero-variance
//     classes) are handled by defined numeric policy instead.
func AddBBoxRegressionTargets(db ImageDB, gridBoxes *tensor.Dense, cfg *Config) (means, stds []float32, err error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	records := db.Records()
	if len(records) == 0 {
		return nil, nil, errors.New("roidb: empty record collection")
	}
	if records[0].GTOverlaps == nil {
		return nil, nil, errors.New("roidb: records carry no overlap matrix")
	}
	// Class count is the overlap matrix's column space.
	numClasses := records[0].GTOverlaps.Shape()[1]

	tiles := cfg.tiles()
	errs := make([]error, len(records))
	sem := make(chan struct{}, cfg.workers())
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec *Record) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			errs[i] = computeRecordTargets(rec, gridBoxes, tiles, cfg)
		}(i, rec)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, nil, errors.Wrapf(err, "computing targets for image %d", i)
		}
	}

	// Aggregate raw deltas per class across the whole corpus. Every
	// image's first-pass output is committed by this point.
	n := gridBoxes.Shape()[0]
	acc := newClassAccumulator(numClasses, cfg.Eps)
	for i, rec := range records {
		if err := acc.add(rec.BBoxTargets.Data().([]float32), n); err != nil {
			return nil, nil, errors.Wrapf(err, "accumulating image %d", i)
		}
	}
	means, stds = acc.moments()

	// Rewrite every image in normalized form and compress.
	for _, rec := range records {
		normalizeTargets(rec.BBoxTargets.Data().([]float32), n, means, stds)
		rec.BBoxTargetsCompressed = Compress(rec.BBoxTargets)
		rec.BBoxTargets = nil
	}
	return means, stds, nil
}

// computeRecordTargets runs the per-image first pass.
func computeRecordTargets(rec *Record, gridBoxes *tensor.Dense, tiles int, cfg *Config) error {
	if !rec.Prepared() {
		return errors.New("roidb: record not prepared; call Prepare before AddBBoxRegressionTargets")
	}

	var gridOverlaps *tensor.Dense
	if rec.GTOverlapsGrid != nil {
		gridOverlaps = Densify(rec.GTOverlapsGrid)
	}

	classesAll := tileClasses(rec.GTClasses, tiles)
	if gridOverlaps != nil && gridOverlaps.Shape()[0] != gridBoxes.Shape()[0] {
		return errors.Errorf("roidb: grid overlap has %d rows, want one per grid box (%d)", gridOverlaps.Shape()[0], gridBoxes.Shape()[0])
	}
	if gridOverlaps != nil && gridOverlaps.Shape()[1] > 0 {
		if rec.BoxesAll == nil {
			return errors.New("roidb: record has grid overlaps but no candidate boxes")
		}
		if boxes := rec.BoxesAll.Shape()[0]; boxes != len(classesAll) {
			return errors.Errorf("roidb: %d candidate boxes but %d tiled classes", boxes, len(classesAll))
		}
		if gridOverlaps.Shape()[1] != len(classesAll) {
			return errors.Errorf("roidb: grid overlap has %d candidate columns, want %d", gridOverlaps.Shape()[1], len(classesAll))
		}
	}

	rec.BBoxTargets = ComputeTargets(gridBoxes, rec.BoxesAll, gridOverlaps, classesAll, cfg)
	return nil
}

// normalizeTargets mean-centers every foreground row's deltas and scales
// by the class standard deviation. The division is skipped per component
// when the std is exactly zero, so a class whose contributing deltas are
// all identical is centered but never divided by zero.
func normalizeTargets(targets []float32, rows int, means, stds []float32) {
	for i := 0; i < rows; i++ {
		cls := int(targets[i*5])
		if cls == 0 {
			continue
		}
		for k := 0; k < 4; k++ {
			targets[i*5+1+k] -= means[cls*4+k]
			if std := stds[cls*4+k]; std != 0 {
				targets[i*5+1+k] /= std
			}
		}
	}
}
