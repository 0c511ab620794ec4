package mlp_go

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const CheckpointVersion = "1"

// ParamData Serializable parameter
type ParamData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// LayerWeight Weights and bias of single linear layer
type LayerWeight struct {
	Weight *ParamData `json:"weight"`
	Bias   *ParamData `json:"bias"`
}

// Checkpoint Everything needed to rebuild trained classifier
type Checkpoint struct {
	Version      string        `json:"version"`
	Dataset      Kind          `json:"dataset"`
	Architecture Architecture  `json:"architecture"`
	Layers       []LayerWeight `json:"layers"`
}

// NewCheckpoint Packs parameters (in order of Architecture.ParamShapes()) into checkpoint
func NewCheckpoint(arch Architecture, kind Kind, weights []*tensor.Dense) (*Checkpoint, error) {
	shapes := arch.ParamShapes()
	if len(weights) != len(shapes) {
		return nil, fmt.Errorf("architecture needs %d parameters, but got %d", len(shapes), len(weights))
	}
	ckpt := &Checkpoint{
		Version:      CheckpointVersion,
		Dataset:      kind,
		Architecture: arch,
		Layers:       make([]LayerWeight, len(weights)/2),
	}
	for i := range ckpt.Layers {
		w, err := toParamData(fmt.Sprintf("w%d", i), weights[2*i], shapes[2*i])
		if err != nil {
			return nil, err
		}
		b, err := toParamData(fmt.Sprintf("b%d", i), weights[2*i+1], shapes[2*i+1])
		if err != nil {
			return nil, err
		}
		ckpt.Layers[i] = LayerWeight{Weight: w, Bias: b}
	}
	return ckpt, nil
}

func toParamData(name string, t *tensor.Dense, want tensor.Shape) (*ParamData, error) {
	if t == nil || !t.Shape().Eq(want) {
		return nil, fmt.Errorf("parameter '%s' must have shape %v", name, want)
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("parameter '%s' is not float64", name)
	}
	return &ParamData{
		Name:  name,
		Shape: append([]int(nil), t.Shape()...),
		Data:  append([]float64(nil), data...),
	}, nil
}

// Weights Restores parameters in order of Architecture.ParamShapes()
func (ckpt *Checkpoint) Weights() ([]*tensor.Dense, error) {
	shapes := ckpt.Architecture.ParamShapes()
	if len(ckpt.Layers)*2 != len(shapes) {
		return nil, fmt.Errorf("architecture needs %d layers, but checkpoint has %d", len(shapes)/2, len(ckpt.Layers))
	}
	weights := make([]*tensor.Dense, 0, len(shapes))
	for i, l := range ckpt.Layers {
		for j, p := range []*ParamData{l.Weight, l.Bias} {
			want := shapes[2*i+j]
			if p == nil {
				return nil, fmt.Errorf("layer #%d misses parameter #%d", i, j)
			}
			if !tensor.Shape(p.Shape).Eq(want) || len(p.Data) != want.TotalSize() {
				return nil, fmt.Errorf("parameter '%s' must have shape %v, but got %v with %d values", p.Name, want, p.Shape, len(p.Data))
			}
			weights = append(weights, tensor.New(tensor.WithShape(p.Shape...), tensor.WithBacking(append([]float64(nil), p.Data...))))
		}
	}
	return weights, nil
}

// ExpectDataset Checks that checkpoint was trained on given dataset
func (ckpt *Checkpoint) ExpectDataset(kind Kind) error {
	if ckpt.Dataset != kind {
		return fmt.Errorf("checkpoint was trained on '%s', but '%s' is expected", ckpt.Dataset, kind)
	}
	return nil
}

// SaveCheckpoint Writes checkpoint as JSON
func SaveCheckpoint(fname string, ckpt *Checkpoint) error {
	data, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Can't marshal checkpoint")
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return errors.Wrapf(err, "Can't write checkpoint '%s'", fname)
	}
	return nil
}

// LoadCheckpoint Reads checkpoint and validates its architecture
func LoadCheckpoint(fname string) (*Checkpoint, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read checkpoint '%s'", fname)
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, errors.Wrap(err, "Can't unmarshal checkpoint")
	}
	if ckpt.Version != CheckpointVersion {
		return nil, fmt.Errorf("checkpoint version '%s' is not supported (expected '%s')", ckpt.Version, CheckpointVersion)
	}
	if err := ckpt.Architecture.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad architecture in checkpoint")
	}
	return &ckpt, nil
}
