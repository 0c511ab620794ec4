package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	mlp "github.com/LdDl/mlp-go"
)

var (
	dataFolder   = flag.String("data", "./data/mnist", "Directory for MNIST files")
	outputFolder = flag.String("output", "./output", "Directory for charts")
	epochs       = flag.Int("epochs", 5, "Number of training epochs")
	batchSize    = flag.Int("batch", 64, "Batch size")
	learningRate = flag.Float64("lr", 0.003, "Learning rate")
	seed         = flag.Int64("seed", 1337, "Random seed")
	printEvery   = flag.Int("print_every", 0, "Report running loss every N batches (0 - per epoch only)")
	imageIdx     = flag.Int("image", 0, "Index of test image to classify after training")
)

func main() {
	flag.Parse()

	err := os.MkdirAll(*outputFolder, 0755)
	if err != nil {
		panic(err)
	}
	err = mlp.Download(context.Background(), mlp.MNIST, *dataFolder)
	if err != nil {
		panic(err)
	}
	trainSet, err := mlp.Load(mlp.MNIST, *dataFolder, true, mlp.DefaultNormalization())
	if err != nil {
		panic(err)
	}
	testSet, err := mlp.Load(mlp.MNIST, *dataFolder, false, mlp.DefaultNormalization())
	if err != nil {
		panic(err)
	}

	/* Define structure of neural network: 784 => 128 => 64 => 10 with log-softmax output */
	arch := mlp.Architecture{
		Input:      trainSet.Rows * trainSet.Cols,
		Hidden:     []int{128, 64},
		Output:     trainSet.Classes,
		Activation: "relu",
		Head:       mlp.HeadLogSoftmax,
	}

	cfg := mlp.DefaultTrainConfig()
	cfg.Epochs = *epochs
	cfg.BatchSize = *batchSize
	cfg.LearningRate = *learningRate
	cfg.Optimizer = mlp.OptimizerSGD
	cfg.Loss = mlp.LossNLL
	cfg.Seed = *seed
	cfg.PrintEvery = *printEvery

	trainer, err := mlp.NewTrainer(arch, cfg, log.New(os.Stderr, "", log.LstdFlags))
	if err != nil {
		panic(err)
	}
	defer trainer.Close()

	_, err = trainer.Train(context.Background(), trainSet, nil, func(stats mlp.EpochStats) {
		fmt.Printf("Training loss: %v\n", stats.TrainLoss)
	})
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
	fmt.Printf("Label: %d, predicted: %d\n", testSet.Labels[*imageIdx], class)
	err = mlp.PlotClassification(image, testSet.Rows, testSet.Cols, probs, mlp.MNIST.ClassNames(), filepath.Join(*outputFolder, "mnist_prediction.png"))
	if err != nil {
		panic(err)
	}
}
