package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeIDXImages writes images in IDX format, gzipped when the path ends in
// .gz.
func writeIDXImages(t *testing.T, path string, images [][]byte, rows, cols int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.Writer = f
	if filepath.Ext(path) == ".gz" {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(magicImages)))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(len(images))))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(rows)))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(cols)))
	for _, img := range images {
		_, err := w.Write(img)
		require.NoError(t, err)
	}
}

// writeIDXLabels writes labels in IDX format, gzipped when the path ends in
// .gz.
func writeIDXLabels(t *testing.T, path string, labels []byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.Writer = f
	if filepath.Ext(path) == ".gz" {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(magicLabels)))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(len(labels))))
	_, err = w.Write(labels)
	require.NoError(t, err)
}

func testImages(n int) [][]byte {
	images := make([][]byte, n)
	for i := range images {
		images[i] = make([]byte, ImageSize)
		for j := range images[i] {
			images[i][j] = byte((i + j) % 256)
		}
	}
	return images
}

func TestReadIDXImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "images-idx3-ubyte")

	want := testImages(3)
	writeIDXImages(t, path, want, ImageRows, ImageCols)

	got, err := readIDXImages(path)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, want, got)
}

func TestReadIDXImagesGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "images-idx3-ubyte.gz")

	want := testImages(2)
	writeIDXImages(t, path, want, ImageRows, ImageCols)

	got, err := readIDXImages(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadIDXImagesBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad-idx3-ubyte")

	// Label magic in an image file.
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(magicLabels)))
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(0)))
	require.NoError(t, f.Close())

	_, err = readIDXImages(path)
	assert.ErrorContains(t, err, "invalid magic number")
}

func TestReadIDXImagesTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short-idx3-ubyte")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(magicImages)))
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(5))) // claims 5 images
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(ImageRows)))
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(ImageCols)))
	_, err = f.Write(make([]byte, ImageSize)) // delivers 1
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = readIDXImages(path)
	assert.Error(t, err)
}

func TestReadIDXLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels-idx1-ubyte")

	want := []byte{0, 1, 2, 9, 5}
	writeIDXLabels(t, path, want)

	got, err := readIDXLabels(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadIDXLabelsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad-idx1-ubyte")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(magicImages)))
	require.NoError(t, f.Close())

	_, err = readIDXLabels(path)
	assert.ErrorContains(t, err, "invalid magic number")
}

func TestOpenIDXMissingFile(t *testing.T) {
	_, err := openIDX(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
