package mlp_go

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values (mean = 0, std = 1)
//
// rng - source of randomness
// shape - shape of resulting dense
//
func NormRandDense(rng *rand.Rand, shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// UniformRandDense Return reference to tensor.Dense filled with pseudo-random float64 values in range [low,high)
//
// rng - source of randomness
// shape - shape of resulting dense
//
func UniformRandDense(rng *rand.Rand, low, high float64, shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = low + (high-low)*rng.Float64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// OneHot Encodes labels as (len(labels), classes) dense with single 1.0 in each row
func OneHot(labels []int, classes int) (*tensor.Dense, error) {
	data := make([]float64, len(labels)*classes)
	for i, label := range labels {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("label %d at position %d is out of range [0;%d)", label, i, classes)
		}
		data[i*classes+label] = 1
	}
	return tensor.New(tensor.WithShape(len(labels), classes), tensor.WithBacking(data)), nil
}

// ArgMax Returns index of maximum value. Empty slice gives -1
func ArgMax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	return floats.MaxIdx(values)
}

// denseRows Returns copy of rows of 2-D float64 dense
func denseRows(t *tensor.Dense) ([][]float64, error) {
	shp := t.Shape()
	if len(shp) != 2 {
		return nil, fmt.Errorf("dense must have two dimensions, but got %d", len(shp))
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("dense must hold float64 values, but got %T", t.Data())
	}
	rows := make([][]float64, shp[0])
	for i := range rows {
		rows[i] = append([]float64(nil), data[i*shp[1]:(i+1)*shp[1]]...)
	}
	return rows, nil
}

// nonFiniteIdx Returns index of first NaN or Inf value, or -1
func nonFiniteIdx(values []float64) int {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}
