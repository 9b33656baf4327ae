package optim_test

import (
	"math"
	"testing"

	"github.com/mint-ml/mint/internal/backend/cpu"
	"github.com/mint-ml/mint/internal/nn"
	"github.com/mint-ml/mint/internal/optim"
	"github.com/mint-ml/mint/internal/tensor"
)

func newParam(t *testing.T, backend *cpu.CPUBackend, name string, data []float32) *nn.Parameter[*cpu.CPUBackend] {
	t.Helper()
	tens, err := tensor.FromSlice(data, tensor.Shape{len(data)}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return nn.NewParameter(name, tens)
}

func gradFor(t *testing.T, backend *cpu.CPUBackend, param *nn.Parameter[*cpu.CPUBackend], data []float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	grad, err := tensor.FromSlice(data, param.Tensor().Shape(), backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor().Raw(): grad.Raw(),
	}
}

func assertParams(t *testing.T, want []float32, param *nn.Parameter[*cpu.CPUBackend], tol float64) {
	t.Helper()
	got := param.Tensor().Data()
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Errorf("param[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSGDStep(t *testing.T) {
	backend := cpu.New()
	param := newParam(t, backend, "weight", []float32{1, 2, 3})
	sgd := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.SGDConfig{LR: 0.1}, backend)

	grads := gradFor(t, backend, param, []float32{1, -1, 0.5})
	sgd.Step(grads)

	// param - 0.1 * grad
	assertParams(t, []float32{0.9, 2.1, 2.95}, param, 1e-6)
}

func TestSGDDefaultLR(t *testing.T) {
	backend := cpu.New()
	sgd := optim.NewSGD(nil, optim.SGDConfig{}, backend)
	if sgd.GetLR() != 0.01 {
		t.Errorf("default LR = %v, want 0.01", sgd.GetLR())
	}
}

func TestSGDMomentum(t *testing.T) {
	backend := cpu.New()
	param := newParam(t, backend, "weight", []float32{0})
	sgd := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// Constant gradient 1.0. The velocity builds up:
	// step 1: v = 1.0,  param = 0 - 0.1*1.0  = -0.1
	// step 2: v = 1.9,  param = -0.1 - 0.19  = -0.29
	// step 3: v = 2.71, param = -0.29 - 0.271 = -0.561
	grads := gradFor(t, backend, param, []float32{1})

	sgd.Step(grads)
	assertParams(t, []float32{-0.1}, param, 1e-6)

	sgd.Step(grads)
	assertParams(t, []float32{-0.29}, param, 1e-6)

	sgd.Step(grads)
	assertParams(t, []float32{-0.561}, param, 1e-6)
}

func TestSGDSkipsMissingGradient(t *testing.T) {
	backend := cpu.New()
	updated := newParam(t, backend, "weight", []float32{1})
	untouched := newParam(t, backend, "bias", []float32{5})
	sgd := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{updated, untouched}, optim.SGDConfig{LR: 0.5}, backend)

	grads := gradFor(t, backend, updated, []float32{2})
	sgd.Step(grads)

	assertParams(t, []float32{0}, updated, 1e-6)
	assertParams(t, []float32{5}, untouched, 0)
}

func TestSGDZeroGrad(t *testing.T) {
	backend := cpu.New()
	param := newParam(t, backend, "weight", []float32{1})
	param.SetGrad(nn.Ones(tensor.Shape{1}, backend))

	sgd := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.SGDConfig{}, backend)
	sgd.ZeroGrad()

	if param.Grad() != nil {
		t.Error("ZeroGrad did not clear the parameter gradient")
	}
}

func TestSGDSetLR(t *testing.T) {
	backend := cpu.New()
	sgd := optim.NewSGD(nil, optim.SGDConfig{LR: 0.1}, backend)
	sgd.SetLR(0.01)
	if sgd.GetLR() != 0.01 {
		t.Errorf("LR = %v after SetLR, want 0.01", sgd.GetLR())
	}
}

func TestAdamDefaults(t *testing.T) {
	backend := cpu.New()
	adam := optim.NewAdam(nil, optim.AdamConfig{}, backend)
	if adam.GetLR() != 0.001 {
		t.Errorf("default LR = %v, want 0.001", adam.GetLR())
	}
	if adam.GetTimestep() != 0 {
		t.Errorf("initial timestep = %d, want 0", adam.GetTimestep())
	}
}

func TestAdamFirstStep(t *testing.T) {
	backend := cpu.New()
	param := newParam(t, backend, "weight", []float32{1, 1})
	adam := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.AdamConfig{LR: 0.001}, backend)

	// On the first step bias correction makes m_hat = g and v_hat = g², so the
	// update is approximately -lr * sign(g) for any nonzero gradient.
	grads := gradFor(t, backend, param, []float32{10, -0.001})
	adam.Step(grads)

	if adam.GetTimestep() != 1 {
		t.Errorf("timestep = %d, want 1", adam.GetTimestep())
	}
	assertParams(t, []float32{1 - 0.001, 1 + 0.001}, param, 1e-5)
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	// Minimize f(x) = (x - 3)² starting from x = 0. The gradient is 2(x-3).
	backend := cpu.New()
	param := newParam(t, backend, "x", []float32{0})
	adam := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.AdamConfig{LR: 0.1}, backend)

	for i := 0; i < 500; i++ {
		x := param.Tensor().Data()[0]
		grads := gradFor(t, backend, param, []float32{2 * (x - 3)})
		adam.Step(grads)
	}

	x := param.Tensor().Data()[0]
	if math.Abs(float64(x-3)) > 0.05 {
		t.Errorf("x = %v after 500 steps, want near 3", x)
	}
}

func TestSGDConvergesOnQuadratic(t *testing.T) {
	backend := cpu.New()
	param := newParam(t, backend, "x", []float32{0})
	sgd := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	for i := 0; i < 200; i++ {
		x := param.Tensor().Data()[0]
		grads := gradFor(t, backend, param, []float32{2 * (x - 3)})
		sgd.Step(grads)
	}

	x := param.Tensor().Data()[0]
	if math.Abs(float64(x-3)) > 0.01 {
		t.Errorf("x = %v after 200 steps, want near 3", x)
	}
}

func TestOptimizerInterface(t *testing.T) {
	backend := cpu.New()
	var _ optim.Optimizer = optim.NewSGD[*cpu.CPUBackend](nil, optim.SGDConfig{}, backend)
	var _ optim.Optimizer = optim.NewAdam[*cpu.CPUBackend](nil, optim.AdamConfig{}, backend)
}
