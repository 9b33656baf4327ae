package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	// Memory is already zero-initialized by make().
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using the Box-Muller
// transform. Only float types are supported.
// Uses math/rand: weight initialization is statistical, not security-critical.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		f := any(data).([]float32)
		for i := 0; i < len(f); i += 2 {
			z0, z1 := boxMuller()
			f[i] = float32(z0)
			if i+1 < len(f) {
				f[i+1] = float32(z1)
			}
		}
	case float64:
		f := any(data).([]float64)
		for i := 0; i < len(f); i += 2 {
			z0, z1 := boxMuller()
			f[i] = z0
			if i+1 < len(f) {
				f[i+1] = z1
			}
		}
	default:
		panic("Randn only supports float32 and float64 types")
	}
	return t
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
// Only float types are supported.
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		f := any(data).([]float32)
		for i := range f {
			f[i] = rand.Float32() //nolint:gosec // statistical use
		}
	case float64:
		f := any(data).([]float64)
		for i := range f {
			f[i] = rand.Float64() //nolint:gosec // statistical use
		}
	default:
		panic("Rand only supports float32 and float64 types")
	}
	return t
}

// boxMuller produces two independent standard normal samples.
func boxMuller() (float64, float64) {
	u1 := rand.Float64() //nolint:gosec // statistical use
	for u1 == 0 {
		u1 = rand.Float64() //nolint:gosec // statistical use
	}
	u2 := rand.Float64() //nolint:gosec // statistical use
	r := math.Sqrt(-2.0 * math.Log(u1))
	return r * math.Cos(2.0*math.Pi*u2), r * math.Sin(2.0*math.Pi*u2)
}
