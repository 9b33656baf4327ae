package ops

import (
	"fmt"

	"github.com/mint-ml/mint/internal/tensor"
)

// NLLOp represents the negative log-likelihood loss over a batch of
// log-probabilities:
//
//	Loss = -mean(logProbs[b, targets[b]])
//
// Backward: the gradient is zero everywhere except at each sample's target
// class, where it is -gradScale / batchSize.
//
// Targets are class indices and are not differentiated.
type NLLOp struct {
	logProbs *tensor.RawTensor // [batch_size, num_classes]
	targets  *tensor.RawTensor // [batch_size] int32
	output   *tensor.RawTensor // [1] mean loss
}

// NewNLLOp creates a new NLLOp.
func NewNLLOp(logProbs, targets, output *tensor.RawTensor) *NLLOp {
	return &NLLOp{logProbs: logProbs, targets: targets, output: output}
}

// Backward scatters the scaled loss gradient onto the target entries.
func (op *NLLOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logProbs.Shape()
	if len(shape) != 2 {
		panic("nll: backward only supports 2D log-probabilities [batch_size, num_classes]")
	}
	batchSize, numClasses := shape[0], shape[1]

	grad, err := tensor.NewRaw(shape, op.logProbs.DType(), op.logProbs.Device())
	if err != nil {
		panic(fmt.Sprintf("nll: failed to create gradient: %v", err))
	}

	if op.logProbs.DType() != tensor.Float32 {
		panic(fmt.Sprintf("nll: unsupported dtype %s (only float32 supported)", op.logProbs.DType()))
	}

	gradScale := outputGrad.AsFloat32()[0]
	targets := op.targets.AsInt32()
	gradData := grad.AsFloat32()

	for b := 0; b < batchSize; b++ {
		gradData[b*numClasses+int(targets[b])] = -gradScale / float32(batchSize)
	}

	return []*tensor.RawTensor{grad}
}

// Inputs returns the differentiated input [logProbs].
func (op *NLLOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logProbs}
}

// Output returns the scalar loss tensor.
func (op *NLLOp) Output() *tensor.RawTensor {
	return op.output
}

// NLLForward computes the mean negative log-likelihood for a batch.
//
// Parameters:
//   - logProbs: [batch_size, num_classes] log-probabilities
//   - targets: [batch_size] class indices
//
// Returns a single-element loss tensor.
func NLLForward(logProbs, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	shape := logProbs.Shape()
	if len(shape) != 2 {
		panic("nll: log-probabilities must be 2D [batch_size, num_classes]")
	}
	if len(targets.Shape()) != 1 || targets.Shape()[0] != shape[0] {
		panic("nll: targets must have shape [batch_size]")
	}
	if logProbs.DType() != tensor.Float32 {
		panic(fmt.Sprintf("nll: unsupported dtype %s (only float32 supported)", logProbs.DType()))
	}

	batchSize, numClasses := shape[0], shape[1]
	lpData := logProbs.AsFloat32()
	targetData := targets.AsInt32()

	var total float64
	for b := 0; b < batchSize; b++ {
		target := int(targetData[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("nll: target %d out of range [0, %d)", target, numClasses))
		}
		total += float64(-lpData[b*numClasses+target])
	}

	output, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("nll: failed to create loss tensor: %v", err))
	}
	output.AsFloat32()[0] = float32(total / float64(batchSize))
	return output
}
