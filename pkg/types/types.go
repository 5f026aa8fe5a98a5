package types

import (
	"fmt"
	"os"
)

// Tensor is a dense, row-major float32 tensor. Image batches use NCHW
// layout (batch, channel, height, width).
type Tensor struct {
	Shape []int
	Data  []float32
}

// Numel returns the number of elements implied by the shape.
func (t Tensor) Numel() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Empty reports whether the tensor holds no data.
func (t Tensor) Empty() bool { return len(t.Data) == 0 }

// Dim returns the size of axis i, or 0 when the axis does not exist.
func (t Tensor) Dim(i int) int {
	if i < 0 || i >= len(t.Shape) {
		return 0
	}
	return t.Shape[i]
}

// ImageSource is one raw input image: either a file path or an
// in-memory encoded buffer. At most one of Path and Data is set.
type ImageSource struct {
	Path string
	Data []byte
}

// ImageFromFile returns an ImageSource backed by a file on disk.
func ImageFromFile(path string) ImageSource { return ImageSource{Path: path} }

// ImageFromBytes returns an ImageSource backed by an encoded buffer.
func ImageFromBytes(data []byte) ImageSource { return ImageSource{Data: data} }

// Bytes returns the encoded image contents, reading the file when the
// source is path-backed.
func (s ImageSource) Bytes() ([]byte, error) {
	if len(s.Data) > 0 {
		return s.Data, nil
	}
	if s.Path == "" {
		return nil, fmt.Errorf("empty image source")
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return b, nil
}

// Name returns a short label for logs and output file names.
func (s ImageSource) Name() string {
	if s.Path != "" {
		return s.Path
	}
	return fmt.Sprintf("buffer(%dB)", len(s.Data))
}
