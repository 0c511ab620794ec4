package mlp_go

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestInferenceProbabilities(t *testing.T) {
	for _, head := range []HeadType{HeadLogits, HeadLogSoftmax} {
		rng := rand.New(rand.NewSource(21))
		arch := Architecture{Input: 6, Hidden: []int{5}, Output: 4, Activation: "sigmoid", Head: head}
		inference, err := NewInference(arch, arch.InitWeights(rng), 3)
		require.NoError(t, err, head)

		images := make([][]float64, 5)
		for i := range images {
			images[i] = NormRandDense(rng, 6).Data().([]float64)
		}
		probs, err := inference.Probabilities(images)
		require.NoError(t, err, head)
		require.Len(t, probs, 5, head)
		for i, p := range probs {
			require.Len(t, p, 4)
			assert.InDelta(t, 1.0, floats.Sum(p), 1e-9, "%s: image #%d", head, i)
			for _, v := range p {
				assert.True(t, v >= 0 && v <= 1)
			}
		}

		// Result for image doesn't depend on its neighbours in batch and padding
		single, class, err := inference.Predict(images[4])
		require.NoError(t, err, head)
		assert.InDeltaSlice(t, probs[4], single, 1e-12, head)
		assert.Equal(t, ArgMax(single), class)

		_, _, err = inference.Predict(images[0][:5])
		assert.Error(t, err)
		require.NoError(t, inference.Close())
	}
}

func TestInferenceSetWeights(t *testing.T) {
	arch := Architecture{Input: 3, Hidden: []int{4}, Output: 2, Activation: "relu", Head: HeadLogits}
	first := arch.InitWeights(rand.New(rand.NewSource(1)))
	second := arch.InitWeights(rand.New(rand.NewSource(2)))
	image := []float64{0.5, -1, 2}

	reference, err := NewInference(arch, second, 1)
	require.NoError(t, err)
	defer reference.Close()
	want, _, err := reference.Predict(image)
	require.NoError(t, err)

	inference, err := NewInference(arch, first, 1)
	require.NoError(t, err)
	defer inference.Close()
	require.NoError(t, inference.SetWeights(second))
	got, _, err := inference.Predict(image)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	assert.Error(t, inference.SetWeights(second[:3]))
	wrong := append(second[:0:0], second...)
	wrong[0] = wrong[2]
	assert.Error(t, inference.SetWeights(wrong))
}

func TestNewInferenceErrors(t *testing.T) {
	arch := Architecture{Input: 3, Output: 2, Activation: "relu", Head: HeadLogits}
	weights := arch.InitWeights(rand.New(rand.NewSource(1)))
	_, err := NewInference(arch, weights, 0)
	assert.Error(t, err)
	_, err = NewInference(arch, weights[:1], 2)
	assert.Error(t, err)
}

func TestInferenceEvaluate(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	ds, err := GenerateBlobs(330, 4, 3, 0.1, rng)
	require.NoError(t, err)
	train, valid, err := ds.Split(0.1)
	require.NoError(t, err)

	arch := blobsArchitecture(HeadLogSoftmax)
	cfg := blobsConfig()
	trainer, err := NewTrainer(arch, cfg, nil)
	require.NoError(t, err)
	defer trainer.Close()

	// Batch size doesn't divide validation size, so last batch is padded
	inference, err := NewInference(arch, trainer.Weights(), 7)
	require.NoError(t, err)
	defer inference.Close()
	lossBefore, _, err := inference.Evaluate(valid)
	require.NoError(t, err)

	_, err = trainer.Train(context.Background(), train, nil, nil)
	require.NoError(t, err)
	require.NoError(t, inference.SetWeights(trainer.Weights()))
	lossAfter, accuracy, err := inference.Evaluate(valid)
	require.NoError(t, err)
	assert.Less(t, lossAfter, lossBefore)
	assert.Greater(t, accuracy, 0.8)
	assert.LessOrEqual(t, accuracy, 1.0)

	_, _, err = inference.Evaluate(nil)
	assert.Error(t, err)
}
