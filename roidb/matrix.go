package roidb

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Densify materializes a compressed overlap matrix as a dense row-major
// matrix. The sparse form is purely a storage optimization of the overlap
// supplier; every row-wise max/argmax in this package operates on the
// dense view.
func Densify(s *tensor.CS) *tensor.Dense {
	return s.Dense()
}

// Compress converts a dense float32 matrix to compressed sparse row
// storage, keeping only nonzero entries. Used to shrink normalized target
// matrices, which are mostly background rows.
func Compress(d *tensor.Dense) *tensor.CS {
	shape := d.Shape()
	rows, cols := shape[0], shape[1]
	data := d.Data().([]float32)

	xs := make([]int, 0, len(data)/4)
	ys := make([]int, 0, len(data)/4)
	vals := make([]float32, 0, len(data)/4)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := data[i*cols+j]; v != 0 {
				xs = append(xs, i)
				ys = append(ys, j)
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		// CSRFromCoord indexes the last stored coordinate, so a matrix
		// with no nonzero entries gets its compressed form built
		// directly: an all-zero row pointer and nothing stored.
		return tensor.NewCSR(ys, make([]int, rows+1), vals, tensor.WithShape(rows, cols))
	}
	return tensor.CSRFromCoord(tensor.Shape{rows, cols}, xs, ys, vals)
}

// BoxMatrix builds an N×4 dense box matrix from flat (x1, y1, x2, y2)
// coordinates.
//
// Arguments:
//   - coords: Flattened box coordinates; length must be a multiple of 4.
//
// Returns:
//   - The N×4 dense matrix, or an error on a malformed coordinate count.
func BoxMatrix(coords []float32) (*tensor.Dense, error) {
	if len(coords)%4 != 0 {
		return nil, errors.Errorf("roidb: box matrix needs 4 coordinates per box, got %d values", len(coords))
	}
	return tensor.New(tensor.WithShape(len(coords)/4, 4), tensor.WithBacking(coords)), nil
}

// rowMaxArgmax scans a row-major rows×cols matrix and returns, per row,
// the maximum value and the index of the first column attaining it. The
// strictly-greater comparison makes the lowest column index win ties,
// which downstream label assignment depends on for determinism.
func rowMaxArgmax(data []float32, rows, cols int) (maxs []float32, args []int) {
	maxs = make([]float32, rows)
	args = make([]int, rows)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		best := row[0]
		bestCol := 0
		for j := 1; j < cols; j++ {
			if row[j] > best {
				best = row[j]
				bestCol = j
			}
		}
		maxs[i] = best
		args[i] = bestCol
	}
	return maxs, args
}
