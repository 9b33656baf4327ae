package main

import (
	"testing"

	"github.com/mint-ml/mint/internal/autodiff"
	"github.com/mint-ml/mint/internal/backend/cpu"
	"github.com/mint-ml/mint/internal/mnist"
	"github.com/mint-ml/mint/internal/nn"
	"github.com/mint-ml/mint/internal/optim"
)

// TestTrainingConverges runs the full training loop on synthetic data. The
// synthetic classes are linearly separable, so a small model should fit them
// within a few epochs.
func TestTrainingConverges(t *testing.T) {
	backend := autodiff.New(cpu.New())

	trainData, valData := mnist.Synthetic(200).Split(0.2)

	model := nn.NewSequential[Backend](
		nn.NewLinear[Backend](mnist.ImageSize, 32, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear[Backend](32, mnist.NumClasses, backend),
		nn.NewLogSoftmax[Backend](),
	)
	criterion := nn.NewNLLLoss[Backend](backend)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	valBatches, err := mnist.MakeBatches(valData, 64, false, 0, backend)
	if err != nil {
		t.Fatalf("failed to create validation batches: %v", err)
	}

	backend.Tape().StartRecording()

	var firstLoss, lastLoss float32
	for epoch := 0; epoch < 10; epoch++ {
		trainBatches, err := mnist.MakeBatches(trainData, 16, true, int64(epoch), backend)
		if err != nil {
			t.Fatalf("failed to create train batches: %v", err)
		}

		loss, _ := trainEpoch(model, criterion, trainBatches, optimizer, backend)
		if epoch == 0 {
			firstLoss = loss
		}
		lastLoss = loss
	}

	if lastLoss >= firstLoss {
		t.Errorf("training loss did not decrease: first=%.4f last=%.4f", firstLoss, lastLoss)
	}

	valLoss, valAcc := validate(model, criterion, valBatches, backend)
	if valAcc < 0.9 {
		t.Errorf("validation accuracy = %.2f after training, want >= 0.9 (loss %.4f)", valAcc, valLoss)
	}
}

// TestValidateLeavesTapeClean ensures evaluation does not grow the tape or
// change the recording state.
func TestValidateLeavesTapeClean(t *testing.T) {
	backend := autodiff.New(cpu.New())

	_, valData := mnist.Synthetic(50).Split(0.5)
	valBatches, err := mnist.MakeBatches(valData, 16, false, 0, backend)
	if err != nil {
		t.Fatalf("failed to create batches: %v", err)
	}

	model := nn.NewSequential[Backend](
		nn.NewLinear[Backend](mnist.ImageSize, 8, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear[Backend](8, mnist.NumClasses, backend),
		nn.NewLogSoftmax[Backend](),
	)
	criterion := nn.NewNLLLoss[Backend](backend)

	backend.Tape().StartRecording()
	backend.Tape().Clear()

	validate(model, criterion, valBatches, backend)

	if backend.Tape().NumOps() != 0 {
		t.Errorf("validation recorded %d operations", backend.Tape().NumOps())
	}
	if !backend.Tape().IsRecording() {
		t.Error("validation did not restore the recording state")
	}
}

func TestNewOptimizer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewSequential[Backend](
		nn.NewLinear[Backend](4, 2, backend),
	)

	sgd := newOptimizer("sgd", model.Parameters(), 0.5, 0.9, backend)
	if sgd.GetLR() != 0.5 {
		t.Errorf("sgd LR = %v, want 0.5", sgd.GetLR())
	}

	adam := newOptimizer("adam", model.Parameters(), 0, 0, backend)
	if adam.GetLR() != 0.001 {
		t.Errorf("adam default LR = %v, want 0.001", adam.GetLR())
	}
}

func TestCountParameters(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := nn.NewSequential[Backend](
		nn.NewLinear[Backend](784, 128, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear[Backend](128, 10, backend),
		nn.NewLogSoftmax[Backend](),
	)

	// 784*128 + 128 + 128*10 + 10
	want := 784*128 + 128 + 128*10 + 10
	if got := countParameters(model); got != want {
		t.Errorf("countParameters = %d, want %d", got, want)
	}
}
