package nn

import (
	"math"

	"github.com/mint-ml/mint/internal/tensor"
)

// NLLLoss computes the mean negative log-likelihood loss.
//
// Loss = -mean(logProbs[b, targets[b]])
//
// It expects log-probabilities as input, i.e. the output of a LogSoftmax
// layer. Pairing LogSoftmax with NLLLoss is numerically equivalent to
// CrossEntropyLoss on raw logits.
//
// Example:
//
//	criterion := nn.NewNLLLoss[Backend](backend)
//	logProbs := model.Forward(input)         // model ends in LogSoftmax
//	loss := criterion.Forward(logProbs, targets)
type NLLLoss[B tensor.Backend] struct {
	backend B
}

// NewNLLLoss creates a new negative log-likelihood loss function.
func NewNLLLoss[B tensor.Backend](backend B) *NLLLoss[B] {
	return &NLLLoss[B]{
		backend: backend,
	}
}

// Forward computes the mean NLL loss.
//
// Parameters:
//   - logProbs: log-probabilities [batch_size, num_classes]
//   - targets: ground-truth class indices [batch_size]
//
// Returns a scalar loss tensor. With an autodiff-aware backend the
// operation is recorded on the tape.
func (n *NLLLoss[B]) Forward(
	logProbs *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	type nllBackend interface {
		NLL(logProbs, targets *tensor.RawTensor) *tensor.RawTensor
	}

	if adBackend, ok := any(n.backend).(nllBackend); ok {
		resultRaw := adBackend.NLL(logProbs.Raw(), targets.Raw())
		return tensor.New[float32, B](resultRaw, n.backend)
	}

	// Fallback for non-autodiff backends.
	shape := logProbs.Shape()
	if len(shape) != 2 {
		panic("NLLLoss: log-probabilities must be 2D [batch_size, num_classes]")
	}

	batchSize, numClasses := shape[0], shape[1]

	lpData := logProbs.Raw().AsFloat32()
	targetsData := targets.Raw().AsInt32()
	if len(targetsData) != batchSize {
		panic("NLLLoss: targets must have shape [batch_size]")
	}

	var total float64
	for b := 0; b < batchSize; b++ {
		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic("NLLLoss: target index out of bounds")
		}
		total += float64(-lpData[b*numClasses+target])
	}

	lossRaw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, n.backend.Device())
	if err != nil {
		panic(err)
	}
	lossRaw.AsFloat32()[0] = float32(total / float64(batchSize))

	return tensor.New[float32, B](lossRaw, n.backend)
}

// Parameters returns nil (loss functions have no trainable parameters).
func (n *NLLLoss[B]) Parameters() []*Parameter[B] {
	return nil
}

// MSELoss computes mean squared error: mean((predictions - targets)²).
// Used for regression targets rather than class indices.
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{
		backend: backend,
	}
}

// Forward computes the MSE loss over predictions and targets of equal shape.
// Returns a scalar loss tensor.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)

	data := squared.Raw().AsFloat32()
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}

	lossRaw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, m.backend.Device())
	if err != nil {
		panic(err)
	}
	lossRaw.AsFloat32()[0] = float32(sum / float64(len(data)))

	return tensor.New[float32, B](lossRaw, m.backend)
}

// Parameters returns nil (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}

// logSoftmaxRow computes log(softmax(z)) using the log-sum-exp trick:
//
//	LogSoftmax(z)[i] = z[i] - (max(z) + log(Σ exp(z - max(z))))
//
// Subtracting max(z) before exponentiating prevents float32 overflow.
func logSoftmaxRow(z []float32) []float32 {
	result := make([]float32, len(z))

	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}

	var sumExp float64
	for _, v := range z {
		sumExp += math.Exp(float64(v - maxZ))
	}
	logSumExp := float64(maxZ) + math.Log(sumExp)

	for i, v := range z {
		result[i] = float32(float64(v) - logSumExp)
	}

	return result
}

// argmaxRow returns the index of the maximum value in the slice.
func argmaxRow(z []float32) int {
	maxIdx := 0
	maxVal := z[0]
	for i, v := range z[1:] {
		if v > maxVal {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return maxIdx
}

// Accuracy computes classification accuracy for a batch.
//
// Scores can be raw logits or log-probabilities; argmax is invariant to the
// monotone log-softmax transform.
//
// Parameters:
//   - scores: model outputs [batch_size, num_classes]
//   - targets: ground-truth class indices [batch_size]
//
// Returns the fraction of correct predictions in [0, 1].
func Accuracy[B tensor.Backend](
	scores *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) float32 {
	shape := scores.Shape()
	batchSize, numClasses := shape[0], shape[1]

	scoresData := scores.Raw().AsFloat32()
	targetsData := targets.Raw().AsInt32()

	correct := 0
	for b := 0; b < batchSize; b++ {
		row := scoresData[b*numClasses : (b+1)*numClasses]
		if argmaxRow(row) == int(targetsData[b]) {
			correct++
		}
	}

	return float32(correct) / float32(batchSize)
}
