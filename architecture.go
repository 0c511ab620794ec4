package mlp_go

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DefaultInitSeed Seed of parameters initialization when Build gets no weights
const DefaultInitSeed int64 = 1337

// HeadType Transformation applied to the output of the last linear layer
type HeadType string

const (
	// HeadLogits Raw scores, no transformation
	HeadLogits = HeadType("logits")
	// HeadLogSoftmax Log-probabilities over classes
	HeadLogSoftmax = HeadType("log_softmax")
)

// Architecture Description of fully-connected classifier
//
// Input - number of features (e.g. 784 for 28x28 images)
// Hidden - sizes of hidden layers
// Output - number of classes
// Activation - name of hidden activation: relu, sigmoid, tanh, none
// Head - output transformation
// Dropout - drop probability after each hidden activation (training graphs only)
//
type Architecture struct {
	Input      int      `json:"input"`
	Hidden     []int    `json:"hidden"`
	Output     int      `json:"output"`
	Activation string   `json:"activation"`
	Head       HeadType `json:"head"`
	Dropout    float64  `json:"dropout"`
}

// Validate Checks sizes, activation name, head and dropout probability
func (arch Architecture) Validate() error {
	if arch.Input <= 0 {
		return fmt.Errorf("input size must be positive, but got %d", arch.Input)
	}
	if arch.Output <= 0 {
		return fmt.Errorf("output size must be positive, but got %d", arch.Output)
	}
	for i, h := range arch.Hidden {
		if h <= 0 {
			return fmt.Errorf("hidden layer #%d size must be positive, but got %d", i, h)
		}
	}
	if _, err := ActivationByName(arch.Activation); err != nil {
		return err
	}
	switch arch.Head {
	case HeadLogits, HeadLogSoftmax:
	default:
		return fmt.Errorf("head '%s' is not supported", arch.Head)
	}
	if arch.Dropout < 0 || arch.Dropout >= 1 {
		return fmt.Errorf("dropout probability must be in [0;1), but got %f", arch.Dropout)
	}
	return nil
}

// Sizes Returns all layer widths from input to output
func (arch Architecture) Sizes() []int {
	sizes := make([]int, 0, len(arch.Hidden)+2)
	sizes = append(sizes, arch.Input)
	sizes = append(sizes, arch.Hidden...)
	return append(sizes, arch.Output)
}

// ParamShapes Returns shapes of parameters in the same order as Network.Learnables(): w0, b0, w1, b1, ...
func (arch Architecture) ParamShapes() []tensor.Shape {
	sizes := arch.Sizes()
	shapes := make([]tensor.Shape, 0, 2*(len(sizes)-1))
	for i := 1; i < len(sizes); i++ {
		shapes = append(shapes, tensor.Shape{sizes[i], sizes[i-1]}, tensor.Shape{1, sizes[i]})
	}
	return shapes
}

// InitWeights Returns freshly initialized parameters. Each parameter of layer with fan-in n is drawn from U(-1/sqrt(n), 1/sqrt(n))
func (arch Architecture) InitWeights(rng *rand.Rand) []*tensor.Dense {
	shapes := arch.ParamShapes()
	weights := make([]*tensor.Dense, len(shapes))
	for i := 0; i < len(shapes); i += 2 {
		fanIn := shapes[i][1]
		bound := 1.0 / math.Sqrt(float64(fanIn))
		weights[i] = UniformRandDense(rng, -bound, bound, shapes[i]...)
		weights[i+1] = UniformRandDense(rng, -bound, bound, shapes[i+1]...)
	}
	return weights
}

// Build Defines classifier on provided graph
//
// name - prefix of parameter nodes names
// batchSize - number of rows in input
// weights - parameters in order of ParamShapes(). If nil then InitWeights is called with source seeded by DefaultInitSeed
// training - if true then dropout layers are inserted after hidden activations
//
func (arch Architecture) Build(g *gorgonia.ExprGraph, name string, batchSize int, weights []*tensor.Dense, training bool) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid architecture")
	}
	if weights == nil {
		weights = arch.InitWeights(rand.New(rand.NewSource(DefaultInitSeed)))
	}
	shapes := arch.ParamShapes()
	if len(weights) != len(shapes) {
		return nil, fmt.Errorf("architecture needs %d parameters, but got %d", len(shapes), len(weights))
	}
	for i := range shapes {
		if weights[i] == nil {
			return nil, fmt.Errorf("parameter #%d is nil", i)
		}
		if !weights[i].Shape().Eq(shapes[i]) {
			return nil, fmt.Errorf("parameter #%d must have shape %v, but got %v", i, shapes[i], weights[i].Shape())
		}
	}
	hiddenActivation, _ := ActivationByName(arch.Activation)

	net := &Network{Name: name}
	numLinear := len(shapes) / 2
	for i := 0; i < numLinear; i++ {
		w := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shapes[2*i]...), gorgonia.WithName(fmt.Sprintf("%s_w%d", name, i)), gorgonia.WithValue(weights[2*i].Clone()))
		b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shapes[2*i+1]...), gorgonia.WithName(fmt.Sprintf("%s_b%d", name, i)), gorgonia.WithValue(weights[2*i+1].Clone()))
		layer := &Layer{
			WeightNode: w,
			BiasNode:   b,
			Type:       LayerLinear,
			Activation: hiddenActivation,
		}
		if i == numLinear-1 {
			layer.Activation = NoActivation
			if arch.Head == HeadLogSoftmax {
				layer.Activation = LogSoftmax
			}
		}
		net.Layers = append(net.Layers, layer)
		if training && i < numLinear-1 && arch.Dropout > 0 {
			net.Layers = append(net.Layers, &Layer{
				Type:        LayerDropout,
				Probability: arch.Dropout,
			})
		}
	}
	return net, nil
}
