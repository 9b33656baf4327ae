// Command mnist-train trains a feed-forward classifier on the MNIST
// handwritten digit dataset.
//
// The model is a two-layer perceptron with a log-probability output:
//
//	Linear(784, hidden) -> ReLU -> Linear(hidden, 10) -> LogSoftmax
//
// trained with negative log-likelihood loss and SGD or Adam.
//
// Usage:
//
//	mnist-train -data ./data -epochs 5 -batch 64 -lr 0.1
//	mnist-train -synthetic            (no dataset files needed)
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mint-ml/mint/internal/autodiff"
	"github.com/mint-ml/mint/internal/backend/cpu"
	"github.com/mint-ml/mint/internal/mnist"
	"github.com/mint-ml/mint/internal/nn"
	"github.com/mint-ml/mint/internal/optim"
)

// Backend is the training backend: CPU kernels wrapped with the autodiff
// tape decorator.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func main() {
	dataDir := flag.String("data", "./data", "directory containing MNIST IDX files")
	maxSamples := flag.Int("samples", 0, "max samples to load (0 = all)")
	epochs := flag.Int("epochs", 5, "number of training epochs")
	batchSize := flag.Int("batch", 64, "mini-batch size")
	hidden := flag.Int("hidden", 128, "hidden layer width")
	lr := flag.Float64("lr", 0, "learning rate (0 = optimizer default)")
	momentum := flag.Float64("momentum", 0.9, "SGD momentum")
	optName := flag.String("optimizer", "sgd", "optimizer: sgd or adam")
	seed := flag.Int64("seed", 42, "shuffle seed")
	useSynthetic := flag.Bool("synthetic", false, "use synthetic data instead of MNIST files")
	flag.Parse()

	backend := autodiff.New(cpu.New())
	fmt.Printf("Mint ML - MNIST training on %s\n", backend.Name())

	trainData, valData := loadData(*dataDir, *maxSamples, *useSynthetic)
	fmt.Printf("Train: %d samples, Val: %d samples\n", trainData.NumSamples(), valData.NumSamples())

	model := nn.NewSequential[Backend](
		nn.NewLinear[Backend](mnist.ImageSize, *hidden, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear[Backend](*hidden, mnist.NumClasses, backend),
		nn.NewLogSoftmax[Backend](),
	)
	fmt.Printf("Model: %d -> %d -> %d (%d parameters)\n",
		mnist.ImageSize, *hidden, mnist.NumClasses, countParameters(model))

	optimizer := newOptimizer(*optName, model.Parameters(), float32(*lr), float32(*momentum), backend)
	fmt.Printf("Optimizer: %s (lr=%g), batch=%d, epochs=%d\n", *optName, optimizer.GetLR(), *batchSize, *epochs)

	criterion := nn.NewNLLLoss[Backend](backend)

	valBatches, err := mnist.MakeBatches(valData, 256, false, 0, backend)
	if err != nil {
		log.Fatalf("failed to create validation batches: %v", err)
	}

	backend.Tape().StartRecording()

	for epoch := 0; epoch < *epochs; epoch++ {
		// Reshuffle each epoch; offsetting the seed keeps runs reproducible.
		trainBatches, err := mnist.MakeBatches(trainData, *batchSize, true, *seed+int64(epoch), backend)
		if err != nil {
			log.Fatalf("failed to create train batches: %v", err)
		}

		trainLoss, trainAcc := trainEpoch(model, criterion, trainBatches, optimizer, backend)
		valLoss, valAcc := validate(model, criterion, valBatches, backend)

		fmt.Printf("Epoch %2d/%d: loss=%.4f acc=%.2f%% | val loss=%.4f acc=%.2f%%\n",
			epoch+1, *epochs, trainLoss, trainAcc*100, valLoss, valAcc*100)
	}

	finalLoss, finalAcc := validate(model, criterion, valBatches, backend)
	fmt.Printf("Final validation: loss=%.4f accuracy=%.2f%%\n", finalLoss, finalAcc*100)
}

// loadData loads the MNIST dataset (or a synthetic stand-in) and splits off a
// 20% validation set.
func loadData(dataDir string, maxSamples int, useSynthetic bool) (*mnist.Dataset, *mnist.Dataset) {
	if useSynthetic {
		fmt.Println("Using synthetic data")
		return mnist.Synthetic(1000).Split(0.2)
	}

	fmt.Printf("Loading MNIST from %s\n", dataDir)
	data, err := mnist.Load(dataDir, true, maxSamples)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("MNIST data files not found.")
			fmt.Println("Download train-images-idx3-ubyte(.gz) and train-labels-idx1-ubyte(.gz)")
			fmt.Println("into the data directory, or run with -synthetic.")
			os.Exit(1)
		}
		log.Fatalf("failed to load MNIST: %v", err)
	}

	return data.Split(0.2)
}

// newOptimizer builds the requested optimizer; lr of 0 keeps the optimizer's
// default learning rate.
func newOptimizer(name string, params []*nn.Parameter[Backend], lr, momentum float32, backend Backend) optim.Optimizer {
	switch name {
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{LR: lr, Momentum: momentum}, backend)
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{LR: lr}, backend)
	default:
		log.Fatalf("unknown optimizer %q (want sgd or adam)", name)
		return nil
	}
}

// trainEpoch runs one pass over the training batches: forward, loss,
// backward, optimizer step, then clears the tape for the next batch.
func trainEpoch(
	model *nn.Sequential[Backend],
	criterion *nn.NLLLoss[Backend],
	batches []*mnist.Batch[Backend],
	optimizer optim.Optimizer,
	backend Backend,
) (avgLoss, accuracy float32) {
	var totalLoss float64
	totalCorrect := 0
	totalSamples := 0

	for _, batch := range batches {
		optimizer.ZeroGrad()
		backend.Tape().Clear()

		logProbs := model.Forward(batch.Images)
		loss := criterion.Forward(logProbs, batch.Labels)

		grads := autodiff.Backward(loss, backend)
		optimizer.Step(grads)

		totalLoss += float64(loss.Item())
		acc := nn.Accuracy(logProbs, batch.Labels)
		totalCorrect += int(acc*float32(batch.Size) + 0.5)
		totalSamples += batch.Size
	}

	return float32(totalLoss / float64(len(batches))), float32(totalCorrect) / float32(totalSamples)
}

// validate evaluates the model with gradient recording disabled.
func validate(
	model *nn.Sequential[Backend],
	criterion *nn.NLLLoss[Backend],
	batches []*mnist.Batch[Backend],
	backend Backend,
) (avgLoss, accuracy float32) {
	wasRecording := backend.Tape().IsRecording()
	backend.Tape().StopRecording()
	defer func() {
		if wasRecording {
			backend.Tape().StartRecording()
		}
	}()

	var totalLoss float64
	totalCorrect := 0
	totalSamples := 0

	for _, batch := range batches {
		logProbs := model.Forward(batch.Images)
		loss := criterion.Forward(logProbs, batch.Labels)

		totalLoss += float64(loss.Item())
		acc := nn.Accuracy(logProbs, batch.Labels)
		totalCorrect += int(acc*float32(batch.Size) + 0.5)
		totalSamples += batch.Size
	}

	return float32(totalLoss / float64(len(batches))), float32(totalCorrect) / float32(totalSamples)
}

// countParameters returns the total number of trainable scalars in the model.
func countParameters(model *nn.Sequential[Backend]) int {
	total := 0
	for _, param := range model.Parameters() {
		total += param.Tensor().NumElements()
	}
	return total
}
