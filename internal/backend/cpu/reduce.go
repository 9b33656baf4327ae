package cpu

import (
	"fmt"

	"github.com/mint-ml/mint/internal/tensor"
)

// Sum reduces the tensor to a single-element tensor holding the total sum.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var sum float32
		for _, v := range x.AsFloat32() {
			sum += v
		}
		result.AsFloat32()[0] = sum
	case tensor.Float64:
		var sum float64
		for _, v := range x.AsFloat64() {
			sum += v
		}
		result.AsFloat64()[0] = sum
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// SumDim sums along a dimension.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumdim", x, dim, keepDim, false)
}

// MeanDim averages along a dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("meandim", x, dim, keepDim, true)
}

// reduceDim accumulates elements along dim; with mean set, the sums are
// divided by the reduced dimension's size.
func (cpu *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("%s: invalid dimension %d for shape %v", name, dim, shape))
	}

	// outer * reduced * inner factorization of the flat layout.
	outer, reduced, inner := 1, shape[dim], 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	outShape := reducedShape(shape, dim, keepDim)
	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		xd, rd := x.AsFloat32(), result.AsFloat32()
		for o := 0; o < outer; o++ {
			for in := 0; in < inner; in++ {
				var sum float32
				for r := 0; r < reduced; r++ {
					sum += xd[(o*reduced+r)*inner+in]
				}
				if mean {
					sum /= float32(reduced)
				}
				rd[o*inner+in] = sum
			}
		}
	case tensor.Float64:
		xd, rd := x.AsFloat64(), result.AsFloat64()
		for o := 0; o < outer; o++ {
			for in := 0; in < inner; in++ {
				var sum float64
				for r := 0; r < reduced; r++ {
					sum += xd[(o*reduced+r)*inner+in]
				}
				if mean {
					sum /= float64(reduced)
				}
				rd[o*inner+in] = sum
			}
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

// reducedShape drops or keeps (as 1) the reduced dimension.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	if len(shape) == 1 {
		return tensor.Shape{1}
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for d, size := range shape {
		if d != dim {
			out = append(out, size)
		}
	}
	return out
}

// Argmax returns the index of the maximum value along a dimension.
// Only the last dimension is supported; the result drops that dimension.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	outer, inner := lastDimLayout("argmax", shape, dim)

	outShape := reducedShape(shape, len(shape)-1, false)
	result, err := tensor.NewRaw(outShape, tensor.Int32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("argmax: failed to create result tensor: %v", err))
	}
	rd := result.AsInt32()

	switch x.DType() {
	case tensor.Float32:
		xd := x.AsFloat32()
		for o := 0; o < outer; o++ {
			row := xd[o*inner : (o+1)*inner]
			best := 0
			for i, v := range row {
				if v > row[best] {
					best = i
				}
			}
			rd[o] = int32(best)
		}
	case tensor.Float64:
		xd := x.AsFloat64()
		for o := 0; o < outer; o++ {
			row := xd[o*inner : (o+1)*inner]
			best := 0
			for i, v := range row {
				if v > row[best] {
					best = i
				}
			}
			rd[o] = int32(best)
		}
	default:
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	return result
}
