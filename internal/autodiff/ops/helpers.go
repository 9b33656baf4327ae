package ops

import "github.com/mint-ml/mint/internal/tensor"

// reduceBroadcast reduces a gradient tensor to match the target input shape.
// Needed when broadcasting was used in the forward pass: the gradient must be
// summed along every axis the input was expanded over.
//
// Example:
//
//	Forward:  a[1,5] + b[3,5] -> c[3,5]   (a broadcast along dim 0)
//	Backward: grad_c[3,5] -> grad_a[1,5]  (sum along dim 0)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	result := grad

	// Shapes align from the right: sum away leading extra dimensions first.
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	// Then sum (keeping the dim) wherever the target is 1 and the gradient is not.
	resShape := result.Shape()
	for d := 0; d < len(targetShape); d++ {
		if targetShape[d] == 1 && resShape[d] > 1 {
			result = backend.SumDim(result, d, true)
			resShape = result.Shape()
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// negate returns -grad.
func negate(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.MulScalar(grad, -1)
}
