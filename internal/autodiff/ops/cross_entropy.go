package ops

import (
	"fmt"
	"math"

	"github.com/mint-ml/mint/internal/tensor"
)

// CrossEntropyOp represents the fused softmax + negative log-likelihood loss
// computed directly from logits:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// Backward:
//
//	dL/dlogits = (softmax(logits) - y_one_hot) / batch_size
//
// Fusing the two keeps the forward numerically stable (log-sum-exp trick) and
// makes the gradient a single subtraction.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor // [batch_size, num_classes]
	targets *tensor.RawTensor // [batch_size] int32
	output  *tensor.RawTensor // [1] mean loss
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, targets: targets, output: output}
}

// Backward computes the gradient with respect to the logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	if len(shape) != 2 {
		panic("crossentropy: backward only supports 2D logits [batch_size, num_classes]")
	}
	if op.logits.DType() != tensor.Float32 {
		panic(fmt.Sprintf("crossentropy: unsupported dtype %s (only float32 supported)", op.logits.DType()))
	}

	batchSize, numClasses := shape[0], shape[1]

	grad, err := tensor.NewRaw(shape, tensor.Float32, op.logits.Device())
	if err != nil {
		panic(fmt.Sprintf("crossentropy: failed to create gradient: %v", err))
	}

	gradScale := outputGrad.AsFloat32()[0]
	logits := op.logits.AsFloat32()
	targets := op.targets.AsInt32()
	gradData := grad.AsFloat32()

	probs := make([]float32, numClasses)
	for b := 0; b < batchSize; b++ {
		row := logits[b*numClasses : (b+1)*numClasses]
		softmaxRow(row, probs)

		target := int(targets[b])
		for i := 0; i < numClasses; i++ {
			g := probs[i]
			if i == target {
				g -= 1.0
			}
			gradData[b*numClasses+i] = gradScale * g / float32(batchSize)
		}
	}

	return []*tensor.RawTensor{grad}
}

// Inputs returns the differentiated input [logits].
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// CrossEntropyForward computes the fused cross-entropy loss from logits.
//
// Parameters:
//   - logits: [batch_size, num_classes] unnormalized scores
//   - targets: [batch_size] class indices
//
// Returns a single-element loss tensor (mean over the batch).
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic("crossentropy: logits must be 2D [batch_size, num_classes]")
	}
	if len(targets.Shape()) != 1 || targets.Shape()[0] != shape[0] {
		panic("crossentropy: targets must have shape [batch_size]")
	}
	if logits.DType() != tensor.Float32 {
		panic(fmt.Sprintf("crossentropy: unsupported dtype %s (only float32 supported)", logits.DType()))
	}

	batchSize, numClasses := shape[0], shape[1]
	logitsData := logits.AsFloat32()
	targetData := targets.AsInt32()

	var total float64
	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]

		target := int(targetData[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("crossentropy: target %d out of range [0, %d)", target, numClasses))
		}

		total += float64(-logSoftmaxAt(row, target))
	}

	output, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("crossentropy: failed to create loss tensor: %v", err))
	}
	output.AsFloat32()[0] = float32(total / float64(batchSize))
	return output
}

// softmaxRow computes softmax of a row into probs using the max-shift trick.
func softmaxRow(row, probs []float32) {
	maxV := row[0]
	for _, v := range row[1:] {
		if v > maxV {
			maxV = v
		}
	}

	var sumExp float64
	for i, v := range row {
		e := math.Exp(float64(v - maxV))
		probs[i] = float32(e)
		sumExp += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sumExp)
	}
}

// logSoftmaxAt returns log_softmax(row)[idx] without materializing the row.
func logSoftmaxAt(row []float32, idx int) float32 {
	maxV := row[0]
	for _, v := range row[1:] {
		if v > maxV {
			maxV = v
		}
	}

	var sumExp float64
	for _, v := range row {
		sumExp += math.Exp(float64(v - maxV))
	}
	logSumExp := float64(maxV) + math.Log(sumExp)

	return float32(float64(row[idx]) - logSumExp)
}
