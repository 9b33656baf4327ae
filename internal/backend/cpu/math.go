package cpu

import (
	"fmt"
	"math"

	"github.com/mint-ml/mint/internal/tensor"
)

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mulscalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		s := float32(scalar)
		xd, rd := x.AsFloat32(), result.AsFloat32()
		for i := range rd {
			rd[i] = xd[i] * s
		}
	case tensor.Float64:
		xd, rd := x.AsFloat64(), result.AsFloat64()
		for i := range rd {
			rd[i] = xd[i] * scalar
		}
	default:
		panic(fmt.Sprintf("mulscalar: unsupported dtype %s", x.DType()))
	}

	return result
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		xd, rd := x.AsFloat32(), result.AsFloat32()
		for i, v := range xd {
			if v > 0 {
				rd[i] = v
			}
		}
	case tensor.Float64:
		xd, rd := x.AsFloat64(), result.AsFloat64()
		for i, v := range xd {
			if v > 0 {
				rd[i] = v
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}

	return result
}

// Softmax applies softmax along the given dimension.
// Only the last dimension is supported.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	outer, inner := lastDimLayout("softmax", x.Shape(), dim)

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		xd, rd := x.AsFloat32(), result.AsFloat32()
		for o := 0; o < outer; o++ {
			softmaxRowFloat32(xd[o*inner:(o+1)*inner], rd[o*inner:(o+1)*inner])
		}
	case tensor.Float64:
		xd, rd := x.AsFloat64(), result.AsFloat64()
		for o := 0; o < outer; o++ {
			softmaxRowFloat64(xd[o*inner:(o+1)*inner], rd[o*inner:(o+1)*inner])
		}
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}

	return result
}

// LogSoftmax applies log-softmax along the given dimension using the
// log-sum-exp trick. Only the last dimension is supported.
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	outer, inner := lastDimLayout("logsoftmax", x.Shape(), dim)

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("logsoftmax: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		xd, rd := x.AsFloat32(), result.AsFloat32()
		for o := 0; o < outer; o++ {
			logSoftmaxRowFloat32(xd[o*inner:(o+1)*inner], rd[o*inner:(o+1)*inner])
		}
	case tensor.Float64:
		xd, rd := x.AsFloat64(), result.AsFloat64()
		for o := 0; o < outer; o++ {
			logSoftmaxRowFloat64(xd[o*inner:(o+1)*inner], rd[o*inner:(o+1)*inner])
		}
	default:
		panic(fmt.Sprintf("logsoftmax: unsupported dtype %s", x.DType()))
	}

	return result
}

// lastDimLayout validates dim against shape and returns the (outer, inner)
// factorization where inner is the size of the last dimension.
func lastDimLayout(name string, shape tensor.Shape, dim int) (outer, inner int) {
	last := len(shape) - 1
	if dim < 0 {
		dim += len(shape)
	}
	if dim != last {
		panic(fmt.Sprintf("%s: only the last dimension is supported, got dim=%d for shape %v", name, dim, shape))
	}

	inner = shape[last]
	outer = shape.NumElements() / inner
	return outer, inner
}

func softmaxRowFloat32(in, out []float32) {
	logSoftmaxRowFloat32(in, out)
	for i := range out {
		out[i] = float32(math.Exp(float64(out[i])))
	}
}

func softmaxRowFloat64(in, out []float64) {
	logSoftmaxRowFloat64(in, out)
	for i := range out {
		out[i] = math.Exp(out[i])
	}
}

// logSoftmaxRowFloat32 computes z - (max(z) + log(sum(exp(z - max(z))))).
// Subtracting the row maximum keeps exp() from overflowing for large logits.
func logSoftmaxRowFloat32(in, out []float32) {
	maxV := in[0]
	for _, v := range in[1:] {
		if v > maxV {
			maxV = v
		}
	}

	var sumExp float64
	for _, v := range in {
		sumExp += math.Exp(float64(v - maxV))
	}
	logSumExp := float64(maxV) + math.Log(sumExp)

	for i, v := range in {
		out[i] = float32(float64(v) - logSumExp)
	}
}

func logSoftmaxRowFloat64(in, out []float64) {
	maxV := in[0]
	for _, v := range in[1:] {
		if v > maxV {
			maxV = v
		}
	}

	var sumExp float64
	for _, v := range in {
		sumExp += math.Exp(v - maxV)
	}
	logSumExp := maxV + math.Log(sumExp)

	for i, v := range in {
		out[i] = v - logSumExp
	}
}
