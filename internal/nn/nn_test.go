package nn_test

import (
	"math"
	"testing"

	"github.com/mint-ml/mint/internal/autodiff"
	"github.com/mint-ml/mint/internal/backend/cpu"
	"github.com/mint-ml/mint/internal/nn"
	"github.com/mint-ml/mint/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func TestLinearForward(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear[*cpu.CPUBackend](3, 2, backend)

	// Overwrite the random initialization with known values.
	copy(layer.Weight().Tensor().Data(), []float32{
		1, 0, -1, // output 0
		0.5, 0.5, 0.5, // output 1
	})
	copy(layer.Bias().Tensor().Data(), []float32{10, -10})

	input, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := layer.Forward(input)

	if !output.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("output shape = %v, want [2 2]", output.Shape())
	}

	// Row 0: [1*1+2*0+3*(-1)+10, 0.5*(1+2+3)-10] = [8, -7]
	// Row 1: [4-6+10, 0.5*15-10] = [8, -2.5]
	want := []float32{8, -7, 8, -2.5}
	got := output.Data()
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			t.Errorf("output[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLinearShapeValidation(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear[*cpu.CPUBackend](4, 2, backend)

	input, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{1, 3}, backend)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for feature count mismatch")
		}
	}()
	layer.Forward(input)
}

func TestLinearParameters(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear[*cpu.CPUBackend](784, 128, backend)

	params := layer.Parameters()
	if len(params) != 2 {
		t.Fatalf("len(Parameters) = %d, want 2", len(params))
	}
	if params[0].Name() != "weight" || params[1].Name() != "bias" {
		t.Errorf("parameter names = %q, %q", params[0].Name(), params[1].Name())
	}
	if !params[0].Tensor().Shape().Equal(tensor.Shape{128, 784}) {
		t.Errorf("weight shape = %v, want [128 784]", params[0].Tensor().Shape())
	}
	if !params[1].Tensor().Shape().Equal(tensor.Shape{128}) {
		t.Errorf("bias shape = %v, want [128]", params[1].Tensor().Shape())
	}

	// Biases start at zero.
	for _, v := range params[1].Tensor().Data() {
		if v != 0 {
			t.Fatal("bias not zero-initialized")
		}
	}
}

func TestXavierBounds(t *testing.T) {
	backend := cpu.New()

	fanIn, fanOut := 100, 50
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))

	w := nn.Xavier(fanIn, fanOut, tensor.Shape{fanOut, fanIn}, backend)
	for _, v := range w.Data() {
		if v < -bound || v > bound {
			t.Fatalf("weight %v outside [-%v, %v]", v, bound, bound)
		}
	}
}

func TestReLUModule(t *testing.T) {
	backend := newBackend()
	relu := nn.NewReLU[Backend]()

	input, err := tensor.FromSlice([]float32{-2, -1, 0, 1, 2}, tensor.Shape{1, 5}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := relu.Forward(input)
	want := []float32{0, 0, 0, 1, 2}
	for i, v := range output.Data() {
		if v != want[i] {
			t.Errorf("output[%d] = %v, want %v", i, v, want[i])
		}
	}

	if relu.Parameters() != nil {
		t.Error("ReLU should have no parameters")
	}
}

func TestLogSoftmaxModule(t *testing.T) {
	backend := newBackend()
	logSoftmax := nn.NewLogSoftmax[Backend]()

	input, err := tensor.FromSlice([]float32{1, 2, 3, 1, 1, 1}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := logSoftmax.Forward(input)
	data := output.Data()

	// Each row must be valid log-probabilities: exp sums to 1.
	for row := 0; row < 2; row++ {
		var sumExp float64
		for col := 0; col < 3; col++ {
			v := data[row*3+col]
			if v > 0 {
				t.Errorf("log-probability %v > 0", v)
			}
			sumExp += math.Exp(float64(v))
		}
		if math.Abs(sumExp-1) > 1e-5 {
			t.Errorf("row %d: exp sums to %v, want 1", row, sumExp)
		}
	}

	// Uniform logits give log(1/3) everywhere.
	wantUniform := float32(math.Log(1.0 / 3.0))
	for col := 0; col < 3; col++ {
		if math.Abs(float64(data[3+col]-wantUniform)) > 1e-5 {
			t.Errorf("uniform row: got %v, want %v", data[3+col], wantUniform)
		}
	}
}

func TestSequential(t *testing.T) {
	backend := newBackend()

	model := nn.NewSequential[Backend](
		nn.NewLinear[Backend](4, 8, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear[Backend](8, 3, backend),
		nn.NewLogSoftmax[Backend](),
	)

	if model.Len() != 4 {
		t.Errorf("Len() = %d, want 4", model.Len())
	}
	if len(model.Parameters()) != 4 {
		t.Errorf("len(Parameters) = %d, want 4 (two weights, two biases)", len(model.Parameters()))
	}

	input, err := tensor.FromSlice(make([]float32, 2*4), tensor.Shape{2, 4}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := model.Forward(input)
	if !output.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("output shape = %v, want [2 3]", output.Shape())
	}

	// Output rows are log-probabilities.
	data := output.Data()
	for row := 0; row < 2; row++ {
		var sumExp float64
		for col := 0; col < 3; col++ {
			sumExp += math.Exp(float64(data[row*3+col]))
		}
		if math.Abs(sumExp-1) > 1e-5 {
			t.Errorf("row %d: exp sums to %v, want 1", row, sumExp)
		}
	}
}

func TestSequentialAdd(t *testing.T) {
	backend := newBackend()

	model := nn.NewSequential[Backend]()
	model.Add(nn.NewLinear[Backend](2, 2, backend))
	model.Add(nn.NewReLU[Backend]())

	if model.Len() != 2 {
		t.Errorf("Len() = %d, want 2", model.Len())
	}
	if _, ok := model.Module(1).(*nn.ReLU[Backend]); !ok {
		t.Error("Module(1) is not the ReLU module")
	}
}

func TestNLLLossKnownValues(t *testing.T) {
	// Plain CPU backend exercises the fallback path; the loss is the mean of
	// the negated log-probabilities at the target indices.
	backend := cpu.New()
	criterion := nn.NewNLLLoss[*cpu.CPUBackend](backend)

	logProbs, err := tensor.FromSlice([]float32{
		-0.5, -1.5, -2.5,
		-3.0, -0.1, -4.0,
	}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	targets, err := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	loss := criterion.Forward(logProbs, targets)
	want := float32((0.5 + 0.1) / 2)
	if math.Abs(float64(loss.Item()-want)) > 1e-6 {
		t.Errorf("loss = %v, want %v", loss.Item(), want)
	}
}

func TestCrossEntropyEqualsLogSoftmaxNLL(t *testing.T) {
	backend := cpu.New()

	logits, err := tensor.FromSlice([]float32{2, 1, 0.1, -1, 3, 0.5}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	targets, err := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	ceLoss := nn.NewCrossEntropyLoss[*cpu.CPUBackend](backend).Forward(logits, targets)

	logProbs := logits.LogSoftmax(1)
	nllLoss := nn.NewNLLLoss[*cpu.CPUBackend](backend).Forward(logProbs, targets)

	if math.Abs(float64(ceLoss.Item()-nllLoss.Item())) > 1e-5 {
		t.Errorf("cross-entropy = %v, log-softmax + NLL = %v", ceLoss.Item(), nllLoss.Item())
	}
}

func TestMSELoss(t *testing.T) {
	backend := cpu.New()
	criterion := nn.NewMSELoss[*cpu.CPUBackend](backend)

	predictions, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	targets, _ := tensor.FromSlice([]float32{2, 2, 5}, tensor.Shape{3}, backend)

	loss := criterion.Forward(predictions, targets)
	// ((1)² + 0 + (2)²) / 3
	want := float32(5.0 / 3.0)
	if math.Abs(float64(loss.Item()-want)) > 1e-5 {
		t.Errorf("loss = %v, want %v", loss.Item(), want)
	}
}

func TestAccuracy(t *testing.T) {
	backend := cpu.New()

	scores, _ := tensor.FromSlice([]float32{
		0.9, 0.1, 0.0, // predicts 0
		0.1, 0.8, 0.1, // predicts 1
		0.3, 0.3, 0.4, // predicts 2
		0.5, 0.4, 0.1, // predicts 0
	}, tensor.Shape{4, 3}, backend)
	targets, _ := tensor.FromSlice([]int32{0, 1, 0, 2}, tensor.Shape{4}, backend)

	acc := nn.Accuracy(scores, targets)
	if math.Abs(float64(acc-0.5)) > 1e-6 {
		t.Errorf("accuracy = %v, want 0.5", acc)
	}
}

func TestParameterGradLifecycle(t *testing.T) {
	backend := cpu.New()

	p := nn.NewParameter("weight", nn.Zeros(tensor.Shape{2, 2}, backend))
	if p.Grad() != nil {
		t.Error("fresh parameter should have nil gradient")
	}

	grad := nn.Ones(tensor.Shape{2, 2}, backend)
	p.SetGrad(grad)
	if p.Grad() != grad {
		t.Error("SetGrad did not attach the gradient")
	}

	p.ZeroGrad()
	if p.Grad() != nil {
		t.Error("ZeroGrad did not clear the gradient")
	}
}

func TestGradientsReachAllParameters(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	model := nn.NewSequential[Backend](
		nn.NewLinear[Backend](4, 6, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear[Backend](6, 3, backend),
		nn.NewLogSoftmax[Backend](),
	)
	criterion := nn.NewNLLLoss[Backend](backend)

	input, err := tensor.FromSlice([]float32{
		0.1, 0.2, 0.3, 0.4,
		0.5, 0.6, 0.7, 0.8,
	}, tensor.Shape{2, 4}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	targets, err := tensor.FromSlice([]int32{0, 2}, tensor.Shape{2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	logProbs := model.Forward(input)
	loss := criterion.Forward(logProbs, targets)

	grads := autodiff.Backward(loss, backend)

	for i, param := range model.Parameters() {
		grad := grads[param.Tensor().Raw()]
		if grad == nil {
			t.Errorf("parameter %d (%s): no gradient", i, param.Name())
			continue
		}
		if !grad.Shape().Equal(param.Tensor().Shape()) {
			t.Errorf("parameter %d (%s): gradient shape %v, want %v",
				i, param.Name(), grad.Shape(), param.Tensor().Shape())
		}
	}
}
