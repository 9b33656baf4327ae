// Package ops defines the differentiable operations recorded on the gradient
// tape, each pairing a forward result with its backward rule.
package ops

import "github.com/mint-ml/mint/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass and
// computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for the inputs given the output gradient.
	// The returned slice corresponds position-wise to Inputs(); entries may
	// be nil for inputs that are not differentiated (e.g. class labels).
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors of this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
