package mnist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mint-ml/mint/internal/backend/cpu"
	"github.com/mint-ml/mint/internal/tensor"
)

func TestMakeBatches(t *testing.T) {
	backend := cpu.New()
	data := Synthetic(100)

	batches, err := MakeBatches(data, 32, false, 0, backend)
	require.NoError(t, err)

	// 100 samples at batch size 32: three full batches plus a remainder of 4.
	require.Len(t, batches, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 32, batches[i].Size)
		assert.True(t, batches[i].Images.Shape().Equal(tensor.Shape{32, ImageSize}))
		assert.True(t, batches[i].Labels.Shape().Equal(tensor.Shape{32}))
	}
	assert.Equal(t, 4, batches[3].Size)
	assert.True(t, batches[3].Images.Shape().Equal(tensor.Shape{4, ImageSize}))
}

func TestMakeBatchesPreservesOrderWithoutShuffle(t *testing.T) {
	backend := cpu.New()
	data := Synthetic(10)

	batches, err := MakeBatches(data, 4, false, 0, backend)
	require.NoError(t, err)

	labels := collectLabels(batches)
	for i, label := range labels {
		assert.Equal(t, data.Labels[i], label)
	}

	// Image rows land in the staged tensor unchanged.
	firstImage := batches[0].Images.Raw().AsFloat32()[:ImageSize]
	assert.Equal(t, data.Images[0], firstImage)
}

func TestMakeBatchesShuffleDeterminism(t *testing.T) {
	backend := cpu.New()
	data := Synthetic(50)

	a, err := MakeBatches(data, 8, true, 42, backend)
	require.NoError(t, err)
	b, err := MakeBatches(data, 8, true, 42, backend)
	require.NoError(t, err)
	c, err := MakeBatches(data, 8, true, 7, backend)
	require.NoError(t, err)

	assert.Equal(t, collectLabels(a), collectLabels(b), "same seed must give the same order")
	assert.NotEqual(t, collectLabels(a), collectLabels(c), "different seeds should give different orders")
}

func TestMakeBatchesShuffleIsPermutation(t *testing.T) {
	backend := cpu.New()
	data := Synthetic(30)

	batches, err := MakeBatches(data, 7, true, 1, backend)
	require.NoError(t, err)

	counts := make(map[int32]int)
	for _, label := range collectLabels(batches) {
		counts[label]++
	}
	// Every class appears exactly 3 times in 30 samples.
	for class := int32(0); class < NumClasses; class++ {
		assert.Equal(t, 3, counts[class], "class %d", class)
	}
}

func TestMakeBatchesInvalidInput(t *testing.T) {
	backend := cpu.New()
	data := Synthetic(10)

	_, err := MakeBatches(data, 0, false, 0, backend)
	assert.ErrorContains(t, err, "batch size must be positive")

	broken := &Dataset{Images: data.Images, Labels: data.Labels[:5]}
	_, err = MakeBatches(broken, 4, false, 0, backend)
	assert.ErrorContains(t, err, "length mismatch")
}

func collectLabels[B tensor.Backend](batches []*Batch[B]) []int32 {
	var labels []int32
	for _, b := range batches {
		labels = append(labels, b.Labels.Raw().AsInt32()...)
	}
	return labels
}
