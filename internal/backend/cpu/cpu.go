// Package cpu implements the CPU compute backend with cache-aware kernels.
package cpu

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"

	"github.com/mint-ml/mint/internal/parallel"
	"github.com/mint-ml/mint/internal/tensor"
)

// CPUBackend implements tensor operations on the CPU.
// Kernels are pure Go; the matrix-multiply kernel parallelizes over rows and
// tiles its inner loops to the detected L1 data cache size.
type CPUBackend struct {
	device   tensor.Device
	parCfg   parallel.Config
	features string
	l1Data   int
}

// New creates a new CPU backend.
// CPU feature detection picks kernel tile sizes and is reported by Features().
func New() *CPUBackend {
	features := "scalar"
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		features = "AVX512"
	case cpuid.CPU.Supports(cpuid.AVX2):
		features = "AVX2"
	case cpuid.CPU.Supports(cpuid.SSE4):
		features = "SSE4"
	case cpuid.CPU.Supports(cpuid.ASIMD):
		features = "NEON"
	}

	l1 := cpuid.CPU.Cache.L1D
	if l1 <= 0 {
		l1 = 32 * 1024
	}

	return &CPUBackend{
		device:   tensor.CPU,
		parCfg:   parallel.DefaultConfig(),
		features: features,
		l1Data:   l1,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Features returns the detected SIMD feature level, for diagnostics.
func (cpu *CPUBackend) Features() string {
	return cpu.features
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binaryOp applies an element-wise binary operation with broadcasting.
func (cpu *CPUBackend) binaryOp(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch a.DType() {
	case tensor.Float32:
		if !needsBroadcast {
			ad, bd, rd := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
			for i := range rd {
				rd[i] = f32(ad[i], bd[i])
			}
		} else {
			idx := newBroadcastIndexer(a.Shape(), b.Shape(), outShape)
			ad, bd, rd := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
			for i := range rd {
				ai, bi := idx.index(i)
				rd[i] = f32(ad[ai], bd[bi])
			}
		}
	case tensor.Float64:
		if !needsBroadcast {
			ad, bd, rd := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
			for i := range rd {
				rd[i] = f64(ad[i], bd[i])
			}
		} else {
			idx := newBroadcastIndexer(a.Shape(), b.Shape(), outShape)
			ad, bd, rd := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
			for i := range rd {
				ai, bi := idx.index(i)
				rd[i] = f64(ad[ai], bd[bi])
			}
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}

	return result
}

// broadcastIndexer maps a flat index in the output tensor to flat indices in
// the two (possibly broadcast) input tensors. Dimensions of size 1 get a
// stride of 0 so the same element is reused along the broadcast axis.
type broadcastIndexer struct {
	outStrides []int
	aStrides   []int
	bStrides   []int
}

func newBroadcastIndexer(aShape, bShape, outShape tensor.Shape) *broadcastIndexer {
	n := len(outShape)
	aPad := padShape(aShape, n)
	bPad := padShape(bShape, n)

	aStrides := broadcastStrides(aPad)
	bStrides := broadcastStrides(bPad)

	return &broadcastIndexer{
		outStrides: outShape.ComputeStrides(),
		aStrides:   aStrides,
		bStrides:   bStrides,
	}
}

func (bi *broadcastIndexer) index(flat int) (int, int) {
	ai, bIdx := 0, 0
	rem := flat
	for d := 0; d < len(bi.outStrides); d++ {
		coord := rem / bi.outStrides[d]
		rem %= bi.outStrides[d]
		ai += coord * bi.aStrides[d]
		bIdx += coord * bi.bStrides[d]
	}
	return ai, bIdx
}

// padShape left-pads a shape with 1s to the given rank.
func padShape(s tensor.Shape, rank int) tensor.Shape {
	if len(s) == rank {
		return s
	}
	padded := make(tensor.Shape, rank)
	for i := range padded {
		padded[i] = 1
	}
	copy(padded[rank-len(s):], s)
	return padded
}

// broadcastStrides computes row-major strides with 0 for size-1 dimensions.
func broadcastStrides(s tensor.Shape) []int {
	strides := s.ComputeStrides()
	for i, dim := range s {
		if dim == 1 {
			strides[i] = 0
		}
	}
	return strides
}
