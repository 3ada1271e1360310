package roidb

import (
	"sync"

	"github.com/pkg/errors"
)

// Prepare enriches every record in the database with the per-region
// quantities training needs: the maximum overlap with ground truth, the
// class attaining it and that class's sub-class id. It also resolves each
// record's image path from the accessor.
//
// The pass mutates records in place and runs images in parallel behind a
// bounded worker pool; records never share state, so results are
// independent of scheduling order.
//
// Arguments:
//   - db: The image database. Every record must already carry GTOverlaps
//     and GTSubindexes.
//   - cfg: Pass configuration; nil selects DefaultConfig.
//
// Returns:
//   - An error if any record's overlap data violates the
//     background/foreground consistency invariant, or if the sub-class
//     table does not line up with the overlap matrix. Either condition
//     means the upstream overlap supplier produced malformed data, so the
//     whole run aborts rather than skipping the offending region.
func Prepare(db ImageDB, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	records := db.Records()
	if len(records) == 0 {
		return errors.New("roidb: no records to prepare")
	}
	if db.ImageCount() != len(records) {
		return errors.Errorf("roidb: image count %d does not match record count %d", db.ImageCount(), len(records))
	}

	errs := make([]error, len(records))
	sem := make(chan struct{}, cfg.workers())
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec *Record) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			errs[i] = prepareRecord(rec, db.ImagePathAt(i))
		}(i, rec)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "preparing image %d", i)
		}
	}
	return nil
}

// prepareRecord runs the assignment pass for a single image.
func prepareRecord(rec *Record, path string) error {
	if rec.GTOverlaps == nil {
		return errors.New("roidb: record has no overlap matrix")
	}
	if rec.GTSubindexes == nil {
		return errors.New("roidb: record has no sub-class index table")
	}

	overlaps := Densify(rec.GTOverlaps)
	shape := overlaps.Shape()
	regions, classes := shape[0], shape[1]
	if classes == 0 {
		return errors.Errorf("roidb: overlap matrix for %s has no class columns", path)
	}

	// The sub-class table is indexed by (region, best class), so its
	// column space must be the overlap matrix's column space. A silent
	// mismatch here would corrupt labels without any out-of-range access.
	subShape := rec.GTSubindexes.Shape()
	if subShape[0] != regions || subShape[1] != classes {
		return errors.Errorf("roidb: sub-class table shape %v does not match overlap shape %v for %s", subShape, shape, path)
	}

	maxOverlaps, maxClasses := rowMaxArgmax(overlaps.Data().([]float32), regions, classes)

	subindexes := rec.GTSubindexes.Data().([]int32)
	maxSubclasses := make([]int, regions)
	for i, cls := range maxClasses {
		maxSubclasses[i] = int(subindexes[i*classes+cls])
	}

	// Zero overlap must resolve to background and nonzero overlap to a
	// foreground class and sub-class, for every region.
	for i := 0; i < regions; i++ {
		if maxOverlaps[i] == 0 {
			if maxClasses[i] != 0 || maxSubclasses[i] != 0 {
				return errors.Errorf("roidb: region %d of %s has zero overlap but foreground labels (class %d, subclass %d)",
					i, path, maxClasses[i], maxSubclasses[i])
			}
		} else {
			if maxClasses[i] == 0 || maxSubclasses[i] == 0 {
				return errors.Errorf("roidb: region %d of %s overlaps ground truth but resolved to background (class %d, subclass %d)",
					i, path, maxClasses[i], maxSubclasses[i])
			}
		}
	}

	rec.Image = path
	rec.MaxOverlaps = maxOverlaps
	rec.MaxClasses = maxClasses
	rec.MaxSubclasses = maxSubclasses
	return nil
}
