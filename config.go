package mlp_go

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// OptimizerKind Solver used for parameters update
type OptimizerKind string

const (
	OptimizerSGD      = OptimizerKind("sgd")
	OptimizerMomentum = OptimizerKind("momentum")
	OptimizerAdam     = OptimizerKind("adam")
	OptimizerRMSProp  = OptimizerKind("rmsprop")
)

// TrainConfig Hyperparameters of training loop
//
// ValidateEvery - evaluate on validation data every k epochs. Zero disables evaluation
// PrintEvery - report running loss every k batches. Zero means report per epoch only
//
type TrainConfig struct {
	Epochs        int
	BatchSize     int
	LearningRate  float64
	Momentum      float64
	Optimizer     OptimizerKind
	Loss          LossKind
	Seed          int64
	Shuffle       bool
	ValidateEvery int
	PrintEvery    int
}

// DefaultTrainConfig Plain SGD over shuffled batches of 64 with NLL loss
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:        5,
		BatchSize:     64,
		LearningRate:  0.003,
		Momentum:      0.9,
		Optimizer:     OptimizerSGD,
		Loss:          LossNLL,
		Seed:          1337,
		Shuffle:       true,
		ValidateEvery: 0,
		PrintEvery:    0,
	}
}

// Validate Checks hyperparameters
func (cfg TrainConfig) Validate() error {
	if cfg.Epochs <= 0 {
		return fmt.Errorf("number of epochs must be positive, but got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, but got %d", cfg.BatchSize)
	}
	if cfg.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, but got %f", cfg.LearningRate)
	}
	if cfg.Optimizer == OptimizerMomentum && (cfg.Momentum < 0 || cfg.Momentum >= 1) {
		return fmt.Errorf("momentum must be in [0;1), but got %f", cfg.Momentum)
	}
	switch cfg.Optimizer {
	case OptimizerSGD, OptimizerMomentum, OptimizerAdam, OptimizerRMSProp:
	default:
		return fmt.Errorf("optimizer '%s' is not supported", cfg.Optimizer)
	}
	switch cfg.Loss {
	case LossCrossEntropy, LossNLL, LossMSE:
	default:
		return fmt.Errorf("loss '%s' is not supported", cfg.Loss)
	}
	if cfg.ValidateEvery < 0 {
		return fmt.Errorf("validation period must be non-negative, but got %d", cfg.ValidateEvery)
	}
	if cfg.PrintEvery < 0 {
		return fmt.Errorf("print period must be non-negative, but got %d", cfg.PrintEvery)
	}
	return nil
}

// Loss is already averaged over batch, so solvers don't scale gradients by batch size
func (cfg TrainConfig) newSolver() (gorgonia.Solver, error) {
	switch cfg.Optimizer {
	case OptimizerSGD:
		return gorgonia.NewVanillaSolver(gorgonia.WithLearnRate(cfg.LearningRate)), nil
	case OptimizerMomentum:
		return gorgonia.NewMomentum(gorgonia.WithLearnRate(cfg.LearningRate), gorgonia.WithMomentum(cfg.Momentum)), nil
	case OptimizerAdam:
		return gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.LearningRate)), nil
	case OptimizerRMSProp:
		return gorgonia.NewRMSPropSolver(gorgonia.WithLearnRate(cfg.LearningRate)), nil
	default:
		return nil, fmt.Errorf("optimizer '%s' is not supported", cfg.Optimizer)
	}
}
