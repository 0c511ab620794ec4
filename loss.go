package mlp_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// LossKind Loss used by trainer
type LossKind string

const (
	// LossCrossEntropy Expects logits at the output (HeadLogits)
	LossCrossEntropy = LossKind("cross_entropy")
	// LossNLL Expects log-probabilities at the output (HeadLogSoftmax)
	LossNLL = LossKind("nll")
	// LossMSE Compares softmax probabilities with one-hot targets. Works with any head
	LossMSE = LossKind("mse")
)

// MSELoss See ref. https://en.wikipedia.org/wiki/Mean_squared_error
// Default reduction is 'mean'
func MSELoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(sqr)
	case LossReductionMean:
		return gorgonia.Mean(sqr)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// CrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// A - probabilities, B - one-hot targets.
// Default reduction is 'mean' (over all elements)
func CrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	log, err := gorgonia.Log(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	neg, err := gorgonia.Neg(log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	hprod, err := gorgonia.HadamardProd(neg, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*B)")
	}
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(hprod)
	case LossReductionMean:
		return gorgonia.Mean(hprod)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// NLLLoss Negative log likelihood. See ref. https://en.wikipedia.org/wiki/Likelihood_function#Log-likelihood
// A - log-probabilities of shape (batch, classes), B - one-hot targets of the same shape.
// Default reduction is 'mean' and it averages over batch (rows), not over all elements
func NLLLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	if a.Dims() != 2 {
		return nil, fmt.Errorf("NLL loss expects (batch, classes) input, but got %d dimensions", a.Dims())
	}
	hprod, err := gorgonia.HadamardProd(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A.*B)")
	}
	sum, err := gorgonia.Sum(hprod)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sum(x)")
	}
	neg, err := gorgonia.Neg(sum)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return neg, nil
	case LossReductionMean:
		batchScalar := gorgonia.NewScalar(a.Graph(), a.Dtype(), gorgonia.WithValue(float64(a.Shape()[0])), gorgonia.WithName(fmt.Sprintf("nll_batch_%d", a.ID())))
		div, err := gorgonia.Div(neg, batchScalar)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do (x/batch)")
		}
		return div, nil
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// LogitsCrossEntropyLoss Cross entropy computed straight from logits: NLL(log(softmax(A)), B)
// Default reduction is 'mean' and it averages over batch (rows)
func LogitsCrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	logProbs, err := LogSoftmax(a, Options{Axis: []int{1}})
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(softmax(A))")
	}
	return NLLLoss(logProbs, b, reduction...)
}

// ClassificationLoss Builds loss node for network output according to its head
func ClassificationLoss(kind LossKind, head HeadType, out, target *gorgonia.Node) (*gorgonia.Node, error) {
	switch kind {
	case LossCrossEntropy:
		if head != HeadLogits {
			return nil, fmt.Errorf("loss '%s' expects '%s' head, but got '%s'", kind, HeadLogits, head)
		}
		return LogitsCrossEntropyLoss(out, target)
	case LossNLL:
		if head != HeadLogSoftmax {
			return nil, fmt.Errorf("loss '%s' expects '%s' head, but got '%s'", kind, HeadLogSoftmax, head)
		}
		return NLLLoss(out, target)
	case LossMSE:
		probs, err := headProbabilities(head, out)
		if err != nil {
			return nil, err
		}
		return MSELoss(probs, target)
	default:
		return nil, fmt.Errorf("loss '%s' is not supported", kind)
	}
}

// headProbabilities Turns network output into probabilities
func headProbabilities(head HeadType, out *gorgonia.Node) (*gorgonia.Node, error) {
	switch head {
	case HeadLogits:
		probs, err := Softmax(out, Options{Axis: []int{1}})
		if err != nil {
			return nil, errors.Wrap(err, "Can't do softmax(logits)")
		}
		return probs, nil
	case HeadLogSoftmax:
		probs, err := Exp(out)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do exp(log_probs)")
		}
		return probs, nil
	default:
		return nil, fmt.Errorf("head '%s' is not supported", head)
	}
}
