package nn

import (
	"github.com/mint-ml/mint/internal/tensor"
)

// CrossEntropyLoss computes cross-entropy loss for multi-class
// classification, fusing log-softmax and negative log-likelihood:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// Gradient:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// It expects raw logits as input. A model that already ends in LogSoftmax
// should use NLLLoss instead; the two layouts produce identical losses and
// gradients.
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss[Backend](backend)
//	logits := model.Forward(input)              // [batch_size, num_classes]
//	loss := criterion.Forward(logits, targets)  // targets: [batch_size]
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{
		backend: backend,
	}
}

// Forward computes the mean cross-entropy loss over a batch.
//
// Parameters:
//   - logits: unnormalized scores [batch_size, num_classes]
//   - targets: ground-truth class indices [batch_size]
//
// Returns a scalar loss tensor. With an autodiff-aware backend the fused
// operation is recorded on the tape.
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	type crossEntropyBackend interface {
		CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
	}

	if adBackend, ok := any(c.backend).(crossEntropyBackend); ok {
		resultRaw := adBackend.CrossEntropy(logits.Raw(), targets.Raw())
		return tensor.New[float32, B](resultRaw, c.backend)
	}

	// Fallback for non-autodiff backends.
	shape := logits.Shape()
	if len(shape) != 2 {
		panic("CrossEntropyLoss: logits must be 2D [batch_size, num_classes]")
	}

	batchSize, numClasses := shape[0], shape[1]

	targetsData := targets.Raw().AsInt32()
	if len(targetsData) != batchSize {
		panic("CrossEntropyLoss: targets must have shape [batch_size]")
	}

	logitsData := logits.Raw().AsFloat32()

	var total float64
	for b := 0; b < batchSize; b++ {
		logProbs := logSoftmaxRow(logitsData[b*numClasses : (b+1)*numClasses])

		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic("CrossEntropyLoss: target index out of bounds")
		}

		total += float64(-logProbs[target])
	}

	lossRaw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, c.backend.Device())
	if err != nil {
		panic(err)
	}
	lossRaw.AsFloat32()[0] = float32(total / float64(batchSize))

	return tensor.New[float32, B](lossRaw, c.backend)
}

// Parameters returns nil (loss functions have no trainable parameters).
func (c *CrossEntropyLoss[B]) Parameters() []*Parameter[B] {
	return nil
}
