package mnist

import (
	"fmt"
	"os"
	"path/filepath"
)

// Standard MNIST dimensions.
const (
	ImageRows  = 28
	ImageCols  = 28
	ImageSize  = ImageRows * ImageCols // 784
	NumClasses = 10
)

// Dataset holds MNIST images and labels in memory.
//
// Images are stored as flat [ImageSize] float32 vectors with pixel values
// normalized to [0, 1]; labels are class indices 0-9.
type Dataset struct {
	Images [][]float32 // [num_samples][784]
	Labels []int32     // [num_samples]
}

// Load reads the MNIST dataset from IDX files in dataDir.
//
// Expected files (a .gz suffix is also accepted):
//   - train-images-idx3-ubyte / train-labels-idx1-ubyte for the training set
//   - t10k-images-idx3-ubyte / t10k-labels-idx1-ubyte for the test set
//
// maxSamples limits the number of loaded samples; 0 loads everything.
// Pixel values are normalized from 0-255 to [0, 1].
func Load(dataDir string, train bool, maxSamples int) (*Dataset, error) {
	var imageFile, labelFile string
	if train {
		imageFile = resolveFile(dataDir, "train-images-idx3-ubyte")
		labelFile = resolveFile(dataDir, "train-labels-idx1-ubyte")
	} else {
		imageFile = resolveFile(dataDir, "t10k-images-idx3-ubyte")
		labelFile = resolveFile(dataDir, "t10k-labels-idx1-ubyte")
	}

	imagesRaw, err := readIDXImages(imageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	labelsRaw, err := readIDXLabels(labelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	if len(imagesRaw) != len(labelsRaw) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(imagesRaw), len(labelsRaw))
	}

	numSamples := len(imagesRaw)
	if maxSamples > 0 && numSamples > maxSamples {
		numSamples = maxSamples
	}

	images := make([][]float32, numSamples)
	labels := make([]int32, numSamples)

	for i := 0; i < numSamples; i++ {
		if len(imagesRaw[i]) != ImageSize {
			return nil, fmt.Errorf("image %d has %d pixels, want %d", i, len(imagesRaw[i]), ImageSize)
		}

		images[i] = make([]float32, ImageSize)
		for j, pixel := range imagesRaw[i] {
			images[i][j] = float32(pixel) / 255.0
		}

		label := int32(labelsRaw[i])
		if label < 0 || label >= NumClasses {
			return nil, fmt.Errorf("label %d out of range at sample %d", label, i)
		}
		labels[i] = label
	}

	return &Dataset{Images: images, Labels: labels}, nil
}

// resolveFile returns the path to name in dir, falling back to the gzipped
// variant when only that exists.
func resolveFile(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if _, err := os.Stat(path + ".gz"); err == nil {
		return path + ".gz"
	}
	return path
}

// Synthetic creates a small synthetic dataset for tests and smoke runs.
//
// Each class gets a distinct bright horizontal band, repeated until
// numSamples is reached. The patterns are linearly separable, so a small
// classifier should fit them quickly.
func Synthetic(numSamples int) *Dataset {
	images := make([][]float32, numSamples)
	labels := make([]int32, numSamples)

	for i := 0; i < numSamples; i++ {
		digit := i % NumClasses
		labels[i] = int32(digit)

		images[i] = make([]float32, ImageSize)
		startRow := digit * 2
		for row := startRow; row < startRow+8 && row < ImageRows; row++ {
			for col := 5; col < 23; col++ {
				images[i][row*ImageCols+col] = 0.8
			}
		}
	}

	return &Dataset{Images: images, Labels: labels}
}

// NumSamples returns the total number of samples in the dataset.
func (d *Dataset) NumSamples() int {
	return len(d.Images)
}

// Split divides the dataset into train and validation sets.
// validationRatio is the fraction held out for validation, e.g. 0.2.
// The returned datasets share the underlying image slices.
func (d *Dataset) Split(validationRatio float32) (*Dataset, *Dataset) {
	numSamples := d.NumSamples()
	splitIdx := int(float32(numSamples) * (1.0 - validationRatio))

	return &Dataset{
			Images: d.Images[:splitIdx],
			Labels: d.Labels[:splitIdx],
		}, &Dataset{
			Images: d.Images[splitIdx:],
			Labels: d.Labels[splitIdx:],
		}
}
