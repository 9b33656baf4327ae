// Package autodiff implements reverse-mode automatic differentiation using
// the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient tracking
// through a GradientTape:
//   - During the forward pass, each differentiable operation is recorded on
//     the tape together with its inputs and output.
//   - During the backward pass, the tape is walked in reverse and each
//     operation's backward rule propagates gradients via the chain rule.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	x := tensor.FromSlice([]float32{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x) // y = x²
//
//	grads := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()].AsFloat32()) // dy/dx = 2x = [4]
package autodiff

import (
	"fmt"

	"github.com/mint-ml/mint/internal/autodiff/ops"
	"github.com/mint-ml/mint/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface, so tensors built on it use the
// wrapped backend's kernels while every differentiable operation lands on the
// tape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control: starting/stopping
// recording, clearing between training steps, inspecting recorded operations.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(x, y)
	b.tape.Record(ops.NewSubOp(x, y, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(x, y)
	b.tape.Record(ops.NewMulOp(x, y, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(x, y)
	b.tape.Record(ops.NewDivOp(x, y, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(x, y)
	b.tape.Record(ops.NewMatMulOp(x, y, result))
	return result
}

// MulScalar multiplies by a scalar without recording.
//
// It is used inside backward rules and for non-differentiated scaling such as
// input normalization; scaling inside a recorded forward pass must be
// expressed with Mul against a constant tensor instead.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return b.inner.MulScalar(x, scalar)
}

// Reshape reshapes a tensor and records the operation.
//
// Recording matters even for a pure view change: the reshaped tensor is a
// distinct RawTensor, and without a ReshapeOp the gradient computed for it
// would never reach the original parameter. The Linear bias is the canonical
// case, reshaped from [out] to [1, out] for broadcasting.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose permutes tensor axes and records the operation.
//
// The CPU backend materializes a transposed copy, so the result is a new
// RawTensor. Without a TransposeOp the weight gradient in a Linear layer
// would be computed for the transposed copy and the optimizer would find no
// gradient for the parameter itself.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	ndim := len(t.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	result := b.inner.Transpose(t, axes...)
	b.tape.Record(ops.NewTransposeOp(t, result, axes))
	return result
}

// ReLU applies the rectified linear unit and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), b.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create output: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsFloat32()
		for i, v := range in {
			if v > 0 {
				out[i] = v
			}
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsFloat64()
		for i, v := range in {
			if v > 0 {
				out[i] = v
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}

	b.tape.Record(ops.NewReLUOp(x, result))
	return result
}

// Softmax applies softmax along the given dimension without recording.
//
// Training goes through LogSoftmax + NLL (or the fused CrossEntropy), whose
// backward rules never need softmax gradients; Softmax here serves inference
// and metrics only.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Softmax(x, dim)
}

// LogSoftmax applies log-softmax along the given dimension and records the
// operation.
func (b *AutodiffBackend[B]) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.LogSoftmax(x, dim)
	b.tape.Record(ops.NewLogSoftmaxOp(x, result))
	return result
}

// NLL computes the mean negative log-likelihood loss and records the
// operation.
//
// Parameters:
//   - logProbs: log-probabilities [batch_size, num_classes], typically the
//     output of LogSoftmax
//   - targets: ground-truth class indices [batch_size]
//
// Returns a single-element loss tensor. Targets are not differentiated.
func (b *AutodiffBackend[B]) NLL(logProbs, targets *tensor.RawTensor) *tensor.RawTensor {
	result := ops.NLLForward(logProbs, targets, b.Device())
	b.tape.Record(ops.NewNLLOp(logProbs, targets, result))
	return result
}

// CrossEntropy computes the fused softmax + negative log-likelihood loss from
// logits and records the operation.
//
// Numerically equivalent to LogSoftmax followed by NLL, but collapses the
// backward pass to (softmax(logits) - one_hot) / batch_size.
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	result := ops.CrossEntropyForward(logits, targets, b.Device())
	b.tape.Record(ops.NewCrossEntropyOp(logits, targets, result))
	return result
}

// Sum delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Sum(x)
}

// SumDim delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.inner.SumDim(x, dim, keepDim)
}

// MeanDim delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.inner.MeanDim(x, dim, keepDim)
}

// Argmax delegates to the wrapped backend. Argmax is piecewise constant, so
// there is nothing to record.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Argmax(x, dim)
}
