// Package nn implements neural network modules for the Mint ML Framework.
//
// It provides the building blocks for feed-forward classifiers:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable parameters with gradient tracking
//   - Linear: fully connected layer
//   - Activations: ReLU, LogSoftmax
//   - Loss functions: NLLLoss, CrossEntropyLoss, MSELoss
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/mint-ml/mint/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules compose to build full architectures:
//
//	model := nn.NewSequential[B](
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, backend),
//	    nn.NewLogSoftmax[B](),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	// The input must have the shape this module expects; Linear, for
	// example, requires [batch_size, in_features].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules. Modules without trainable
	// parameters (activations) return nil.
	Parameters() []*Parameter[B]
}
