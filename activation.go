package mlp_go

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia'a api_gen.go - https://github.com/gorgonia/gorgonia/blob/master/api_gen.go#L1
type ActivationFunc func(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)

func NoActivation(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) { return a, nil }
func Rectify(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)      { return gorgonia.Rectify(a) }
func Sigmoid(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)      { return gorgonia.Sigmoid(a) }
func Tanh(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)         { return gorgonia.Tanh(a) }
func Exp(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)          { return gorgonia.Exp(a) }

func Softmax(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
	for i := range opts {
		// First i-th option with provided field 'Axis' would be considered for use.
		if len(opts[i].Axis) > 0 {
			return gorgonia.SoftMax(a, opts[i].Axis...)
		}
	}
	return gorgonia.SoftMax(a)
}

// LogSoftmax Is log(softmax(x)) along the same axis as Softmax
func LogSoftmax(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
	sm, err := Softmax(a, opts...)
	if err != nil {
		return nil, err
	}
	return gorgonia.Log(sm)
}

// Options Struct for holding options for certain activation functions.
type Options struct {
	Axis []int
}

var activationsByName = map[string]ActivationFunc{
	"none":    NoActivation,
	"relu":    Rectify,
	"sigmoid": Sigmoid,
	"tanh":    Tanh,
}

// ActivationByName Returns hidden-layer activation for its configuration name
func ActivationByName(name string) (ActivationFunc, error) {
	f, ok := activationsByName[name]
	if !ok {
		return nil, fmt.Errorf("activation '%s' is not supported", name)
	}
	return f, nil
}
