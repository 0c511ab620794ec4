package mlp_go

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotClassification(t *testing.T) {
	pixels := make([]float64, 28*28)
	for i := range pixels {
		pixels[i] = float64(i%28)/14 - 1
	}
	probs := []float64{0.05, 0.05, 0.6, 0.05, 0.05, 0.05, 0.05, 0.04, 0.03, 0.03}
	fname := filepath.Join(t.TempDir(), "classification.png")
	require.NoError(t, PlotClassification(pixels, 28, 28, probs, FashionMNIST.ClassNames(), fname))

	f, err := os.Open(fname)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestPlotClassificationErrors(t *testing.T) {
	dir := t.TempDir()
	names := MNIST.ClassNames()
	probs := make([]float64, 10)

	assert.Error(t, PlotClassification(make([]float64, 10), 28, 28, probs, names, filepath.Join(dir, "a.png")))
	assert.Error(t, PlotClassification(make([]float64, 4), 2, 2, nil, nil, filepath.Join(dir, "b.png")))
	assert.Error(t, PlotClassification(make([]float64, 4), 2, 2, probs, names[:9], filepath.Join(dir, "c.png")))
	assert.Error(t, PlotClassification(make([]float64, 4), 2, 2, probs, names, filepath.Join(dir, "missing", "d.png")))
}

func TestPlotClassificationNonFinite(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a", "b"}

	assert.Error(t, PlotClassification([]float64{0, math.NaN(), 1, 0}, 2, 2, []float64{0.5, 0.5}, names, filepath.Join(dir, "nan.png")))
	assert.Error(t, PlotClassification([]float64{0, math.Inf(1), 1, 0}, 2, 2, []float64{0.5, 0.5}, names, filepath.Join(dir, "inf.png")))
	assert.Error(t, PlotClassification([]float64{0, 1, 1, 0}, 2, 2, []float64{math.NaN(), 0.5}, names, filepath.Join(dir, "probs.png")))
}

func TestToGrayNonFinite(t *testing.T) {
	img := toGray([]float64{math.NaN(), 0, 1, math.Inf(1), math.Inf(-1), 0.5}, 2, 3)
	assert.Equal(t, []uint8{0, 0, 255, 255, 0, 127}, img.Pix)

	img = toGray([]float64{math.NaN(), math.NaN()}, 1, 2)
	assert.Equal(t, []uint8{0, 0}, img.Pix)
}

func TestToGrayConstantImage(t *testing.T) {
	img := toGray([]float64{0.3, 0.3, 0.3, 0.3}, 2, 2)
	for _, v := range img.Pix {
		assert.Equal(t, uint8(0), v)
	}
	img = toGray([]float64{-1, 1, 0, 1}, 2, 2)
	assert.Equal(t, []uint8{0, 255, 127, 255}, img.Pix)
}

func TestPlotLosses(t *testing.T) {
	dir := t.TempDir()
	train := []float64{1.2, 0.8, 0.6}

	withValid := filepath.Join(dir, "losses.png")
	require.NoError(t, PlotLosses(train, []float64{1.1, 0.9, 0.85}, withValid))
	info, err := os.Stat(withValid)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.NoError(t, PlotLosses(train, nil, filepath.Join(dir, "train_only.png")))

	assert.Error(t, PlotLosses(nil, nil, filepath.Join(dir, "empty.png")))
	assert.Error(t, PlotLosses(train, []float64{1}, filepath.Join(dir, "mismatch.png")))
}
