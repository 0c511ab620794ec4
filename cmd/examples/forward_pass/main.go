package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	mlp "github.com/LdDl/mlp-go"
)

var (
	dataFolder   = flag.String("data", "./data/mnist", "Directory for MNIST files")
	outputFolder = flag.String("output", "./output", "Directory for charts")
	seed         = flag.Int64("seed", 1337, "Random seed")
	imageIdx     = flag.Int("image", 0, "Index of test image to classify")
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
	testSet, err := mlp.Load(mlp.MNIST, *dataFolder, false, mlp.DefaultNormalization())
	if err != nil {
		panic(err)
	}
	fmt.Printf("Loaded %d test images of %dx%d\n", testSet.Len(), testSet.Rows, testSet.Cols)

	/* Define structure of neural network: 784 => 128 => 64 => 10 */
	arch := mlp.Architecture{
		Input:      testSet.Rows * testSet.Cols,
		Hidden:     []int{128, 64},
		Output:     testSet.Classes,
		Activation: "relu",
		Head:       mlp.HeadLogits,
	}
	weights := arch.InitWeights(rand.New(rand.NewSource(*seed)))

	inference, err := mlp.NewInference(arch, weights, 1)
	if err != nil {
		panic(err)
	}
	defer inference.Close()

	// Untrained network gives nearly uniform probabilities
	image, err := testSet.Image(*imageIdx)
	if err != nil {
		panic(err)
	}
	probs, class, err := inference.Predict(image)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Label: %d, predicted: %d\n", testSet.Labels[*imageIdx], class)
	fmt.Println("Probabilities:", probs)

	err = mlp.PlotClassification(image, testSet.Rows, testSet.Cols, probs, mlp.MNIST.ClassNames(), filepath.Join(*outputFolder, "forward_pass.png"))
	if err != nil {
		panic(err)
	}
}
