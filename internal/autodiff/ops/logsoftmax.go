package ops

import (
	"fmt"
	"math"

	"github.com/mint-ml/mint/internal/tensor"
)

// LogSoftmaxOp represents row-wise log-softmax over the last dimension:
//
//	y[i] = x[i] - logsumexp(x)
//
// Backward, per row with upstream gradient g:
//
//	dx[i] = g[i] - softmax(x)[i] * Σ_j g[j]
//
// softmax(x) is recovered from the stored output as exp(y).
type LogSoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogSoftmaxOp creates a new LogSoftmaxOp.
func NewLogSoftmaxOp(input, output *tensor.RawTensor) *LogSoftmaxOp {
	return &LogSoftmaxOp{input: input, output: output}
}

// Backward computes the input gradient from the stored log-probabilities.
func (op *LogSoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.output.Shape()
	inner := shape[len(shape)-1]
	outer := shape.NumElements() / inner

	gradInput, err := tensor.NewRaw(shape, op.output.DType(), op.output.Device())
	if err != nil {
		panic(fmt.Sprintf("logsoftmax: failed to create gradient: %v", err))
	}

	switch op.output.DType() {
	case tensor.Float32:
		logProbs, g, out := op.output.AsFloat32(), outputGrad.AsFloat32(), gradInput.AsFloat32()
		for o := 0; o < outer; o++ {
			row := o * inner
			var gSum float64
			for i := 0; i < inner; i++ {
				gSum += float64(g[row+i])
			}
			for i := 0; i < inner; i++ {
				prob := math.Exp(float64(logProbs[row+i]))
				out[row+i] = g[row+i] - float32(prob*gSum)
			}
		}
	case tensor.Float64:
		logProbs, g, out := op.output.AsFloat64(), outputGrad.AsFloat64(), gradInput.AsFloat64()
		for o := 0; o < outer; o++ {
			row := o * inner
			var gSum float64
			for i := 0; i < inner; i++ {
				gSum += g[row+i]
			}
			for i := 0; i < inner; i++ {
				out[row+i] = g[row+i] - math.Exp(logProbs[row+i])*gSum
			}
		}
	default:
		panic(fmt.Sprintf("logsoftmax: unsupported dtype %s", op.output.DType()))
	}

	return []*tensor.RawTensor{gradInput}
}

// Inputs returns the input tensor [x].
func (op *LogSoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the log-probability tensor.
func (op *LogSoftmaxOp) Output() *tensor.RawTensor {
	return op.output
}
