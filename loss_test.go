package mlp_go

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func constMatrix(g *gorgonia.ExprGraph, name string, rows, cols int, data []float64) *gorgonia.Node {
	return gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(rows, cols), gorgonia.WithName(name), gorgonia.WithValue(tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))))
}

func evalScalar(t *testing.T, g *gorgonia.ExprGraph, n *gorgonia.Node) float64 {
	t.Helper()
	var v gorgonia.Value
	gorgonia.Read(n, &v)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	return v.Data().(float64)
}

func TestNLLLoss(t *testing.T) {
	g := gorgonia.NewGraph()
	logProbs := constMatrix(g, "log_probs", 2, 2, []float64{math.Log(0.5), math.Log(0.5), math.Log(0.25), math.Log(0.75)})
	targets := constMatrix(g, "targets", 2, 2, []float64{1, 0, 0, 1})

	loss, err := NLLLoss(logProbs, targets)
	require.NoError(t, err)
	expected := -(math.Log(0.5) + math.Log(0.75)) / 2
	assert.InDelta(t, expected, evalScalar(t, g, loss), 1e-9)
}

func TestNLLLossSum(t *testing.T) {
	g := gorgonia.NewGraph()
	logProbs := constMatrix(g, "log_probs", 2, 2, []float64{math.Log(0.5), math.Log(0.5), math.Log(0.25), math.Log(0.75)})
	targets := constMatrix(g, "targets", 2, 2, []float64{1, 0, 0, 1})

	loss, err := NLLLoss(logProbs, targets, LossReductionSum)
	require.NoError(t, err)
	expected := -(math.Log(0.5) + math.Log(0.75))
	assert.InDelta(t, expected, evalScalar(t, g, loss), 1e-9)
}

func TestLogitsCrossEntropyLoss(t *testing.T) {
	g := gorgonia.NewGraph()
	// softmax([0, ln3]) = [0.25, 0.75]
	logits := constMatrix(g, "logits", 2, 2, []float64{0, 0, 0, math.Log(3)})
	targets := constMatrix(g, "targets", 2, 2, []float64{1, 0, 0, 1})

	loss, err := LogitsCrossEntropyLoss(logits, targets)
	require.NoError(t, err)
	expected := -(math.Log(0.5) + math.Log(0.75)) / 2
	assert.InDelta(t, expected, evalScalar(t, g, loss), 1e-9)
}

func TestMSELoss(t *testing.T) {
	g := gorgonia.NewGraph()
	a := constMatrix(g, "a", 1, 2, []float64{1, 2})
	b := constMatrix(g, "b", 1, 2, []float64{0, 0})

	loss, err := MSELoss(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, evalScalar(t, g, loss), 1e-9)
}

func TestLossUnknownReduction(t *testing.T) {
	g := gorgonia.NewGraph()
	a := constMatrix(g, "a", 1, 2, []float64{0.5, 0.5})
	b := constMatrix(g, "b", 1, 2, []float64{1, 0})

	_, err := MSELoss(a, b, LossReduction(99))
	assert.Error(t, err)
	_, err = CrossEntropyLoss(a, b, LossReduction(99))
	assert.Error(t, err)
	_, err = NLLLoss(a, b, LossReduction(99))
	assert.Error(t, err)
}

func TestClassificationLossHeadMismatch(t *testing.T) {
	g := gorgonia.NewGraph()
	out := constMatrix(g, "out", 1, 2, []float64{0.1, 0.2})
	target := constMatrix(g, "target", 1, 2, []float64{1, 0})

	_, err := ClassificationLoss(LossCrossEntropy, HeadLogSoftmax, out, target)
	assert.Error(t, err)
	_, err = ClassificationLoss(LossNLL, HeadLogits, out, target)
	assert.Error(t, err)
	_, err = ClassificationLoss(LossKind("hinge"), HeadLogits, out, target)
	assert.Error(t, err)

	_, err = ClassificationLoss(LossMSE, HeadLogits, out, target)
	assert.NoError(t, err)
}
