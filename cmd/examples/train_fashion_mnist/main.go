package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	mlp "github.com/LdDl/mlp-go"
)

var (
	dataFolder   = flag.String("data", "./data/fashion_mnist", "Directory for Fashion-MNIST files")
	outputFolder = flag.String("output", "./output", "Directory for charts and checkpoint")
	epochs       = flag.Int("epochs", 5, "Number of training epochs")
	batchSize    = flag.Int("batch", 64, "Batch size")
	learningRate = flag.Float64("lr", 0.003, "Learning rate")
	dropout      = flag.Float64("dropout", 0.2, "Dropout probability after hidden layers")
	seed         = flag.Int64("seed", 1337, "Random seed")
	resume       = flag.String("resume", "", "Checkpoint to continue training from")
	imageIdx     = flag.Int("image", 0, "Index of test image to classify after training")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := os.MkdirAll(*outputFolder, 0755)
	if err != nil {
		panic(err)
	}
	err = mlp.Download(ctx, mlp.FashionMNIST, *dataFolder)
	if err != nil {
		panic(err)
	}
	trainSet, err := mlp.Load(mlp.FashionMNIST, *dataFolder, true, mlp.DefaultNormalization())
	if err != nil {
		panic(err)
	}
	testSet, err := mlp.Load(mlp.FashionMNIST, *dataFolder, false, mlp.DefaultNormalization())
	if err != nil {
		panic(err)
	}

	/* Define structure of neural network: 784 => 256 => 128 => 64 => 10 */
	arch := mlp.Architecture{
		Input:      trainSet.Rows * trainSet.Cols,
		Hidden:     []int{256, 128, 64},
		Output:     trainSet.Classes,
		Activation: "relu",
		Head:       mlp.HeadLogSoftmax,
		Dropout:    *dropout,
	}

	cfg := mlp.DefaultTrainConfig()
	cfg.Epochs = *epochs
	cfg.BatchSize = *batchSize
	cfg.LearningRate = *learningRate
	cfg.Optimizer = mlp.OptimizerAdam
	cfg.Loss = mlp.LossNLL
	cfg.Seed = *seed
	cfg.ValidateEvery = 1

	logger := log.New(os.Stdout, "", log.LstdFlags)
	var trainer *mlp.Trainer
	if *resume != "" {
		ckpt, err := mlp.LoadCheckpoint(*resume)
		if err != nil {
			panic(err)
		}
		if err := ckpt.ExpectDataset(mlp.FashionMNIST); err != nil {
			panic(err)
		}
		weights, err := ckpt.Weights()
		if err != nil {
			panic(err)
		}
		// Layer sizes come from checkpoint, dropout is a training option
		arch = ckpt.Architecture
		arch.Dropout = *dropout
		trainer, err = mlp.NewTrainerFromWeights(arch, cfg, weights, logger)
		if err != nil {
			panic(err)
		}
	} else {
		trainer, err = mlp.NewTrainer(arch, cfg, logger)
		if err != nil {
			panic(err)
		}
	}
	defer trainer.Close()

	history, err := trainer.Train(ctx, trainSet, testSet, nil)
	if err != nil {
		panic(err)
	}
	trainLosses := make([]float64, len(history))
	validLosses := make([]float64, len(history))
	for i, stats := range history {
		trainLosses[i] = stats.TrainLoss
		validLosses[i] = stats.ValidLoss
	}
	err = mlp.PlotLosses(trainLosses, validLosses, filepath.Join(*outputFolder, "fashion_losses.png"))
	if err != nil {
		panic(err)
	}

	/* Save trained network */
	ckpt, err := mlp.NewCheckpoint(arch, mlp.FashionMNIST, trainer.Weights())
	if err != nil {
		panic(err)
	}
	err = mlp.SaveCheckpoint(filepath.Join(*outputFolder, "fashion_checkpoint.json"), ckpt)
	if err != nil {
		panic(err)
	}

	/* Check out predictions */
	inference, err := mlp.NewInference(arch, trainer.Weights(), 1)
	if err != nil {
		panic(err)
	}
	defer inference.Close()
	image, err := testSet.Image(*imageIdx)
	if err != nil {
		panic(err)
	}
	probs, class, err := inference.Predict(image)
	if err != nil {
		panic(err)
	}
	classNames := mlp.FashionMNIST.ClassNames()
	fmt.Printf("Label: %s, predicted: %s\n", classNames[testSet.Labels[*imageIdx]], classNames[class])
	err = mlp.PlotClassification(image, testSet.Rows, testSet.Cols, probs, classNames, filepath.Join(*outputFolder, "fashion_prediction.png"))
	if err != nil {
		panic(err)
	}
}
