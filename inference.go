package mlp_go

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Inference Evaluation graph which outputs class probabilities. Dropout is never applied here
type Inference struct {
	arch      Architecture
	batchSize int

	net      *Network
	input    *gorgonia.Node
	probsVal gorgonia.Value
	tm       gorgonia.VM
}

// NewInference Prepares evaluation graph for provided parameters
//
// batchSize - number of images processed by single run. Partial batches are padded
//
func NewInference(arch Architecture, weights []*tensor.Dense, batchSize int) (*Inference, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, but got %d", batchSize)
	}
	g := gorgonia.NewGraph()
	net, err := arch.Build(g, "inference", batchSize, weights, false)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define classifier")
	}
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, arch.Input), gorgonia.WithName("inference_input"))
	if err := net.Fwd(input, batchSize); err != nil {
		return nil, errors.Wrap(err, "[Inference]")
	}
	probs, err := headProbabilities(arch.Head, net.Out())
	if err != nil {
		return nil, errors.Wrap(err, "Can't define probabilities")
	}
	gorgonia.WithName("inference_probabilities")(probs)
	inf := &Inference{
		arch:      arch,
		batchSize: batchSize,
		net:       net,
		input:     input,
	}
	gorgonia.Read(probs, &inf.probsVal)
	inf.tm = gorgonia.NewTapeMachine(g)
	return inf, nil
}

// Close Releases tape machine
func (inf *Inference) Close() error {
	return inf.tm.Close()
}

// SetWeights Copies provided parameters into evaluation graph
func (inf *Inference) SetWeights(weights []*tensor.Dense) error {
	shapes := inf.arch.ParamShapes()
	if len(weights) != len(shapes) {
		return fmt.Errorf("architecture needs %d parameters, but got %d", len(shapes), len(weights))
	}
	learnables := inf.net.Learnables()
	for i, n := range learnables {
		if weights[i] == nil || !weights[i].Shape().Eq(shapes[i]) {
			return fmt.Errorf("parameter #%d must have shape %v", i, shapes[i])
		}
		dst, ok := n.Value().Data().([]float64)
		if !ok {
			return fmt.Errorf("parameter #%d is not float64", i)
		}
		src, ok := weights[i].Data().([]float64)
		if !ok {
			return fmt.Errorf("provided parameter #%d is not float64", i)
		}
		copy(dst, src)
	}
	return nil
}

// Probabilities Returns probabilities of classes for each image
func (inf *Inference) Probabilities(images [][]float64) ([][]float64, error) {
	result := make([][]float64, 0, len(images))
	for start := 0; start < len(images); start += inf.batchSize {
		end := start + inf.batchSize
		if end > len(images) {
			end = len(images)
		}
		batch, filled, err := Pad(images[start:end], inf.batchSize, inf.arch.Input)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't prepare batch starting at image #%d", start)
		}
		rows, err := inf.run(batch)
		if err != nil {
			return nil, err
		}
		result = append(result, rows[:filled]...)
	}
	return result, nil
}

func (inf *Inference) run(batch *tensor.Dense) ([][]float64, error) {
	if err := gorgonia.Let(inf.input, batch); err != nil {
		return nil, errors.Wrap(err, "Can't init input value")
	}
	defer inf.tm.Reset()
	if err := inf.tm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run VM")
	}
	out, ok := inf.probsVal.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("unexpected output value type %T", inf.probsVal)
	}
	return denseRows(out)
}

// Predict Returns probabilities of classes for single image and the most probable class
func (inf *Inference) Predict(image []float64) ([]float64, int, error) {
	probs, err := inf.Probabilities([][]float64{image})
	if err != nil {
		return nil, -1, err
	}
	return probs[0], ArgMax(probs[0]), nil
}

// Evaluate Returns mean negative log likelihood and accuracy over dataset
func (inf *Inference) Evaluate(ds *Dataset) (loss, accuracy float64, err error) {
	if ds == nil || ds.Len() == 0 {
		return 0, 0, fmt.Errorf("dataset is empty")
	}
	correct := 0
	for start := 0; start < ds.Len(); start += inf.batchSize {
		end := start + inf.batchSize
		if end > ds.Len() {
			end = ds.Len()
		}
		images := make([][]float64, 0, end-start)
		for i := start; i < end; i++ {
			img, err := ds.Image(i)
			if err != nil {
				return 0, 0, err
			}
			images = append(images, img)
		}
		probs, err := inf.Probabilities(images)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "Can't evaluate images [%d;%d)", start, end)
		}
		for i, p := range probs {
			label := ds.Labels[start+i]
			loss -= math.Log(math.Max(p[label], 1e-12))
			if ArgMax(p) == label {
				correct++
			}
		}
	}
	n := float64(ds.Len())
	return loss / n, float64(correct) / n, nil
}
