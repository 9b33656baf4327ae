package cpu

import (
	"fmt"

	"github.com/mint-ml/mint/internal/tensor"
)

// Reshape returns a view of t with a new shape.
// The data buffer is shared; only the shape metadata changes.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Transpose permutes the tensor's dimensions, copying into a contiguous
// result. With no axes given, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)

	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", rank, len(axes)))
	}

	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v for shape %v", axes, shape))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(outShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: failed to create result tensor: %v", err))
	}

	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	n := shape.NumElements()

	// srcStride[d] is the input stride of the axis that landed at output dim d.
	srcStride := make([]int, rank)
	for d, ax := range axes {
		srcStride[d] = inStrides[ax]
	}

	copyPermuted := func(srcIndex func(int) int) {
		switch t.DType() {
		case tensor.Float32:
			src, dst := t.AsFloat32(), result.AsFloat32()
			for i := 0; i < n; i++ {
				dst[i] = src[srcIndex(i)]
			}
		case tensor.Float64:
			src, dst := t.AsFloat64(), result.AsFloat64()
			for i := 0; i < n; i++ {
				dst[i] = src[srcIndex(i)]
			}
		case tensor.Int32:
			src, dst := t.AsInt32(), result.AsInt32()
			for i := 0; i < n; i++ {
				dst[i] = src[srcIndex(i)]
			}
		default:
			panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
		}
	}

	copyPermuted(func(flat int) int {
		src := 0
		rem := flat
		for d := 0; d < rank; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			src += coord * srcStride[d]
		}
		return src
	})

	return result
}
