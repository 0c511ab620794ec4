package mlp_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// WeightNode - weights of shape (out, in) for linear layer
// BiasNode - bias of shape (1, out). Could be nil
// Probability - drop probability for dropout layer
//
type Layer struct {
	WeightNode  *gorgonia.Node
	BiasNode    *gorgonia.Node
	Activation  ActivationFunc
	Type        LayerType
	Probability float64
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerDropout
)

func (lt LayerType) String() string {
	switch lt {
	case LayerLinear:
		return "linear"
	case LayerFlatten:
		return "flatten"
	case LayerDropout:
		return "dropout"
	default:
		return fmt.Sprintf("LayerType(%d)", uint16(lt))
	}
}

var (
	allowedNoWeights = []LayerType{LayerFlatten, LayerDropout}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Feedforward input through layer. Activation is not applied here.
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied for bias
//
func (l *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
		return nil, fmt.Errorf("%s layer has nil weight node", l.Type)
	}
	switch l.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		out, err := gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
		if l.BiasNode == nil {
			return out, nil
		}
		if batchSize < 2 {
			out, err = gorgonia.Add(out, l.BiasNode)
			if err != nil {
				return nil, errors.Wrap(err, "Can't add bias")
			}
			return out, nil
		}
		out, err = gorgonia.BroadcastAdd(out, l.BiasNode, nil, []byte{0})
		if err != nil {
			return nil, errors.Wrapf(err, "Can't add bias [in broadcast term with batch_size = %d]", batchSize)
		}
		return out, nil
	case LayerFlatten:
		out, err := gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
		return out, nil
	case LayerDropout:
		if l.Probability < 0 || l.Probability >= 1 {
			return nil, fmt.Errorf("dropout probability must be in [0;1), but got %f", l.Probability)
		}
		if l.Probability == 0 {
			return input, nil
		}
		out, err := gorgonia.Dropout(input, l.Probability)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply dropout")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", l.Type)
	}
}
