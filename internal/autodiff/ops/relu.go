package ops

import (
	"fmt"

	"github.com/mint-ml/mint/internal/tensor"
)

// ReLUOp represents the ReLU activation: output = max(0, x).
//
// Backward: d(ReLU(x))/dx = 1 where x > 0, else 0.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// Backward masks the output gradient where the input was non-positive.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	gradInput, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create gradient: %v", err))
	}

	switch op.input.DType() {
	case tensor.Float32:
		in, g, out := op.input.AsFloat32(), outputGrad.AsFloat32(), gradInput.AsFloat32()
		for i, v := range in {
			if v > 0 {
				out[i] = g[i]
			}
		}
	case tensor.Float64:
		in, g, out := op.input.AsFloat64(), outputGrad.AsFloat64(), gradInput.AsFloat64()
		for i, v := range in {
			if v > 0 {
				out[i] = g[i]
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", op.input.DType()))
	}

	return []*tensor.RawTensor{gradInput}
}

// Inputs returns the input tensor [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}
