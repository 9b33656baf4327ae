package mnist

import (
	"fmt"
	"math/rand"

	"github.com/mint-ml/mint/internal/tensor"
)

// Batch is one mini-batch of images and labels, already staged as tensors.
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B] // [batch_size, 784]
	Labels *tensor.Tensor[int32, B]   // [batch_size]
	Size   int
}

// MakeBatches splits a dataset into mini-batches.
//
// When shuffle is true the sample order is permuted with a Fisher-Yates
// shuffle seeded by seed, so epochs are reproducible for a fixed seed. The
// last batch may be smaller when the dataset size does not divide evenly.
func MakeBatches[B tensor.Backend](
	data *Dataset,
	batchSize int,
	shuffle bool,
	seed int64,
	backend B,
) ([]*Batch[B], error) {
	numSamples := len(data.Images)
	if numSamples != len(data.Labels) {
		return nil, fmt.Errorf("images and labels length mismatch: %d vs %d", numSamples, len(data.Labels))
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, numSamples)
	for i := range indices {
		indices[i] = i
	}

	if shuffle {
		rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible shuffling, not crypto
		rng.Shuffle(numSamples, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	numBatches := (numSamples + batchSize - 1) / batchSize
	batches := make([]*Batch[B], 0, numBatches)

	for start := 0; start < numSamples; start += batchSize {
		end := start + batchSize
		if end > numSamples {
			end = numSamples
		}
		size := end - start

		imagesRaw, err := tensor.NewRaw(tensor.Shape{size, ImageSize}, tensor.Float32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create images tensor: %w", err)
		}

		labelsRaw, err := tensor.NewRaw(tensor.Shape{size}, tensor.Int32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create labels tensor: %w", err)
		}

		imagesData := imagesRaw.AsFloat32()
		labelsData := labelsRaw.AsInt32()

		for j := start; j < end; j++ {
			idx := indices[j]
			copy(imagesData[(j-start)*ImageSize:(j-start+1)*ImageSize], data.Images[idx])
			labelsData[j-start] = data.Labels[idx]
		}

		batches = append(batches, &Batch[B]{
			Images: tensor.New[float32, B](imagesRaw, backend),
			Labels: tensor.New[int32, B](labelsRaw, backend),
			Size:   size,
		})
	}

	return batches, nil
}
