package roidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func denseF32(rows, cols int, data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
}

func denseI32(rows, cols int, data []int32) *tensor.Dense {
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
}

// sparseF32 builds compressed storage the way an overlap supplier would
// hand it to us.
func sparseF32(rows, cols int, data []float32) *tensor.CS {
	return Compress(denseF32(rows, cols, data))
}

func TestCompressDensifyRoundTrip(t *testing.T) {
	raw := []float32{
		0, 0.7, 0,
		0, 0, 0,
		0.1, 0, 0.9,
	}
	dense := denseF32(3, 3, raw)

	compressed := Compress(dense)
	restored := Densify(compressed)

	assert.Equal(t, []int{3, 3}, []int(restored.Shape()), "dense view should keep the matrix shape")
	assert.Equal(t, raw, restored.Data().([]float32), "round trip should preserve every entry")
}

func TestCompressAllZeroMatrix(t *testing.T) {
	dense := denseF32(2, 4, make([]float32, 8))

	restored := Densify(Compress(dense))

	assert.Equal(t, make([]float32, 8), restored.Data().([]float32), "an all-zero matrix should survive compression")
}

func TestBoxMatrix(t *testing.T) {
	boxes, err := BoxMatrix([]float32{10, 10, 50, 50, 0, 0, 20, 30})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, []int(boxes.Shape()))

	_, err = BoxMatrix([]float32{10, 10, 50})
	assert.Error(t, err, "a coordinate count that is not a multiple of 4 should be rejected")
}

func TestRowMaxArgmaxTieBreak(t *testing.T) {
	// Two columns share the maximum; the scan must keep the lowest
	// column index.
	maxs, args := rowMaxArgmax([]float32{
		0.5, 0.5, 0.1,
		0.2, 0.9, 0.9,
	}, 2, 3)

	assert.Equal(t, []float32{0.5, 0.9}, maxs)
	assert.Equal(t, []int{0, 1}, args, "lowest column index should win ties")
}
