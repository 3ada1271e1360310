// Package roidb - turns a bare region-proposal database into a labeled
// training set for an object-detection model.
//
// The package runs two passes over the same per-image record collection.
// Prepare assigns every candidate region its best-matching ground-truth
// class from a precomputed overlap matrix. AddBBoxRegressionTargets then
// derives per-grid-box bounding-box regression targets and standardizes
// them per class across the whole corpus, returning the mean/std tables
// needed to invert the normalization at inference time.
package roidb

import "gorgonia.org/tensor"

// Record is the region database entry for a single image. The caller
// populates the input fields before any pass runs; the passes write the
// derived fields in place. Records are never created or deleted here.
type Record struct {
	// Image is the resolved path of the image file, set by Prepare from
	// the ImageDB accessor.
	Image string

	// GTOverlaps is the sparse overlap matrix between this image's
	// candidate regions (rows) and the class columns. Values are
	// IoU-like scores in [0, 1].
	GTOverlaps *tensor.CS

	// GTSubindexes maps (region, class) to an integer sub-class id. It
	// is dense int32 and must match the dense shape of GTOverlaps.
	GTSubindexes *tensor.Dense

	// BoxesAll holds the ground-truth-plus-extra boxes used as
	// regression-target sources, one (x1, y1, x2, y2) row per box.
	BoxesAll *tensor.Dense

	// GTOverlapsGrid is the sparse overlap of the corpus-global
	// evaluation grid against BoxesAll. A nil matrix means the image has
	// no usable ground truth and yields all-background targets.
	GTOverlapsGrid *tensor.CS

	// GTClasses lists the class id of each ground-truth instance, in
	// BoxesAll order before scale tiling.
	GTClasses []int

	// MaxOverlaps, MaxClasses and MaxSubclasses are written by Prepare:
	// per region, the best overlap value and the class/sub-class of the
	// best-matching column.
	MaxOverlaps   []float32
	MaxClasses    []int
	MaxSubclasses []int

	// BBoxTargets is the dense per-grid-box target matrix written by the
	// first regression pass: one row per grid box, columns
	// [class, dx, dy, dw, dh]. After normalization it is compressed into
	// BBoxTargetsCompressed and cleared.
	BBoxTargets           *tensor.Dense
	BBoxTargetsCompressed *tensor.CS
}

// Prepared reports whether Prepare has already enriched this record.
// AddBBoxRegressionTargets requires every record to be prepared first.
func (r *Record) Prepared() bool {
	return r.MaxClasses != nil && r.MaxOverlaps != nil
}

// ImageDB is the accessor contract for a mutable per-image record
// collection. The collection is exclusively owned by the caller for the
// duration of a pass; no concurrent external mutation is allowed.
type ImageDB interface {
	// ImageCount returns the number of images in the database.
	ImageCount() int
	// ImagePathAt resolves the image file path for index i.
	ImagePathAt(i int) string
	// Records returns the record collection, one entry per image, in
	// the same order as the image index.
	Records() []*Record
}
