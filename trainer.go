package mlp_go

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// EpochStats Summary of single epoch. Validation fields are filled only when Validated is true
type EpochStats struct {
	Epoch         int
	TrainLoss     float64
	Validated     bool
	ValidLoss     float64
	ValidAccuracy float64
	Duration      time.Duration
}

// Trainer Owns training graph: input -> network -> loss -> gradients, plus tape machine and solver
type Trainer struct {
	arch   Architecture
	cfg    TrainConfig
	logger *log.Logger
	rng    *rand.Rand

	graph   *gorgonia.ExprGraph
	net     *Network
	input   *gorgonia.Node
	target  *gorgonia.Node
	cost    *gorgonia.Node
	costVal gorgonia.Value
	tm      gorgonia.VM
	solver  gorgonia.Solver
}

// NewTrainer Prepares training graph with freshly initialized parameters
//
// logger - destination of progress messages. Could be nil
//
func NewTrainer(arch Architecture, cfg TrainConfig, logger *log.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid training configuration")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return newTrainer(arch, cfg, arch.InitWeights(rng), rng, logger)
}

// NewTrainerFromWeights Prepares training graph starting from provided parameters (e.g. loaded from checkpoint)
func NewTrainerFromWeights(arch Architecture, cfg TrainConfig, weights []*tensor.Dense, logger *log.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid training configuration")
	}
	return newTrainer(arch, cfg, weights, rand.New(rand.NewSource(cfg.Seed)), logger)
}

func newTrainer(arch Architecture, cfg TrainConfig, weights []*tensor.Dense, rng *rand.Rand, logger *log.Logger) (*Trainer, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	g := gorgonia.NewGraph()
	net, err := arch.Build(g, "classifier", cfg.BatchSize, weights, true)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define classifier")
	}

	/* Prepare tensors for input and label values */
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(cfg.BatchSize, arch.Input), gorgonia.WithName("classifier_input"))
	target := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(cfg.BatchSize, arch.Output), gorgonia.WithName("classifier_target"))
	if err := net.Fwd(input, cfg.BatchSize); err != nil {
		return nil, errors.Wrap(err, "[Trainer]")
	}

	/* Prepare cost node */
	cost, err := ClassificationLoss(cfg.Loss, arch.Head, net.Out(), target)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define loss")
	}
	gorgonia.WithName("classifier_loss")(cost)

	/* Define gradients */
	if _, err := gorgonia.Grad(cost, net.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "Can't define gradients")
	}

	solver, err := cfg.newSolver()
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		arch:   arch,
		cfg:    cfg,
		logger: logger,
		rng:    rng,
		graph:  g,
		net:    net,
		input:  input,
		target: target,
		cost:   cost,
		solver: solver,
	}
	gorgonia.Read(cost, &t.costVal)
	t.tm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(net.Learnables()...))
	return t, nil
}

// Close Releases tape machine
func (t *Trainer) Close() error {
	return t.tm.Close()
}

// Architecture Returns architecture of trained network
func (t *Trainer) Architecture() Architecture {
	return t.arch
}

// Weights Returns copies of current parameters in order of Architecture.ParamShapes()
func (t *Trainer) Weights() []*tensor.Dense {
	learnables := t.net.Learnables()
	weights := make([]*tensor.Dense, len(learnables))
	for i, n := range learnables {
		weights[i] = n.Value().(*tensor.Dense).Clone().(*tensor.Dense)
	}
	return weights
}

// Step Does single optimization step on provided batch and returns batch loss
func (t *Trainer) Step(images, labels *tensor.Dense) (float64, error) {
	if err := gorgonia.Let(t.input, images); err != nil {
		return 0, errors.Wrap(err, "Can't init input value")
	}
	if err := gorgonia.Let(t.target, labels); err != nil {
		return 0, errors.Wrap(err, "Can't init target value")
	}
	/* Forward pass, loss and backward pass */
	if err := t.tm.RunAll(); err != nil {
		t.tm.Reset()
		return 0, errors.Wrap(err, "Can't run VM")
	}
	loss, ok := t.costVal.Data().(float64)
	if !ok {
		t.tm.Reset()
		return 0, fmt.Errorf("unexpected loss value type %T", t.costVal.Data())
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.tm.Reset()
		return loss, fmt.Errorf("loss diverged: %v", loss)
	}
	/* Parameters update */
	if err := t.solver.Step(gorgonia.NodesToValueGrads(t.net.Learnables())); err != nil {
		t.tm.Reset()
		return loss, errors.Wrap(err, "Can't do solver step")
	}
	t.tm.Reset()
	return loss, nil
}

// Train Runs training loop
//
// train - training data
// valid - validation data. Could be nil; used only when ValidateEvery > 0
// onEpoch - called after each epoch. Could be nil
//
func (t *Trainer) Train(ctx context.Context, train, valid *Dataset, onEpoch func(EpochStats)) ([]EpochStats, error) {
	if err := t.checkDataset(train); err != nil {
		return nil, errors.Wrap(err, "Bad training data")
	}
	loader, err := NewDataLoader(train, t.cfg.BatchSize, t.cfg.Shuffle, t.rng)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare loader")
	}

	var evaluator *Inference
	if valid != nil && t.cfg.ValidateEvery > 0 {
		if err := t.checkDataset(valid); err != nil {
			return nil, errors.Wrap(err, "Bad validation data")
		}
		evaluator, err = NewInference(t.arch, t.Weights(), t.cfg.BatchSize)
		if err != nil {
			return nil, errors.Wrap(err, "Can't prepare evaluator")
		}
		defer evaluator.Close()
	}

	history := make([]EpochStats, 0, t.cfg.Epochs)
	for e := 1; e <= t.cfg.Epochs; e++ {
		st := time.Now()
		loader.Reset()
		runningLoss := 0.0
		batches := 0
		for {
			if err := ctx.Err(); err != nil {
				return history, errors.Wrapf(err, "Training interrupted at epoch %d, batch %d", e, batches+1)
			}
			images, labels, ok, err := loader.Next()
			if err != nil {
				return history, errors.Wrapf(err, "Can't prepare batch #%d of epoch %d", batches+1, e)
			}
			if !ok {
				break
			}
			loss, err := t.Step(images, labels)
			if err != nil {
				return history, errors.Wrapf(err, "Can't train on batch #%d of epoch %d", batches+1, e)
			}
			runningLoss += loss
			batches++
			if t.cfg.PrintEvery > 0 && batches%t.cfg.PrintEvery == 0 {
				t.logger.Printf("Epoch %d/%d, batch %d/%d: running loss %.6f", e, t.cfg.Epochs, batches, loader.Batches(), runningLoss/float64(batches))
			}
		}
		stats := EpochStats{
			Epoch:     e,
			TrainLoss: runningLoss / float64(batches),
		}
		if evaluator != nil && e%t.cfg.ValidateEvery == 0 {
			if err := evaluator.SetWeights(t.Weights()); err != nil {
				return history, errors.Wrap(err, "Can't pass weights to evaluator")
			}
			stats.ValidLoss, stats.ValidAccuracy, err = evaluator.Evaluate(valid)
			if err != nil {
				return history, errors.Wrapf(err, "Can't evaluate after epoch %d", e)
			}
			stats.Validated = true
		}
		stats.Duration = time.Since(st)
		if stats.Validated {
			t.logger.Printf("Epoch %d/%d: training loss %.6f, validation loss %.6f, validation accuracy %.4f, taken time %v", e, t.cfg.Epochs, stats.TrainLoss, stats.ValidLoss, stats.ValidAccuracy, stats.Duration)
		} else {
			t.logger.Printf("Epoch %d/%d: training loss %.6f, taken time %v", e, t.cfg.Epochs, stats.TrainLoss, stats.Duration)
		}
		history = append(history, stats)
		if onEpoch != nil {
			onEpoch(stats)
		}
	}
	return history, nil
}

func (t *Trainer) checkDataset(ds *Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return fmt.Errorf("dataset is empty")
	}
	if ds.Features() != t.arch.Input {
		return fmt.Errorf("network expects %d features, but dataset has %d", t.arch.Input, ds.Features())
	}
	if ds.Classes != t.arch.Output {
		return fmt.Errorf("network expects %d classes, but dataset has %d", t.arch.Output, ds.Classes)
	}
	return nil
}
