// Package imaging holds the small amount of raster plumbing the
// codebase plugins share: decoding inputs into tensors and writing
// annotated images back out.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	// input decoders
	_ "image/gif"
	_ "image/jpeg"

	"github.com/tongda/mmdeploy/pkg/types"
)

// Decode reads an image source and returns its pixels as a CHW float32
// tensor (3 channels, values in [0,1]) plus the original bounds.
func Decode(src types.ImageSource) (types.Tensor, int, int, error) {
	b, err := src.Bytes()
	if err != nil {
		return types.Tensor{}, 0, 0, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return types.Tensor{}, 0, 0, fmt.Errorf("decode %s: %w", src.Name(), err)
	}
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	t := types.Tensor{Shape: []int{3, h, w}, Data: make([]float32, 3*h*w)}
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			t.Data[i] = float32(r) / 0xffff
			t.Data[plane+i] = float32(g) / 0xffff
			t.Data[2*plane+i] = float32(b) / 0xffff
		}
	}
	return t, h, w, nil
}

// Resize scales a CHW tensor to (h, w) with nearest-neighbor sampling.
func Resize(t types.Tensor, h, w int) types.Tensor {
	if len(t.Shape) != 3 || (t.Shape[1] == h && t.Shape[2] == w) {
		return t
	}
	c, sh, sw := t.Shape[0], t.Shape[1], t.Shape[2]
	out := types.Tensor{Shape: []int{c, h, w}, Data: make([]float32, c*h*w)}
	for ch := 0; ch < c; ch++ {
		for y := 0; y < h; y++ {
			sy := y * sh / h
			for x := 0; x < w; x++ {
				sx := x * sw / w
				out.Data[ch*h*w+y*w+x] = t.Data[ch*sh*sw+sy*sw+sx]
			}
		}
	}
	return out
}

// ToImage converts a CHW tensor back to an RGBA image for drawing.
func ToImage(t types.Tensor) *image.RGBA {
	if len(t.Shape) != 3 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	h, w := t.Shape[1], t.Shape[2]
	plane := h * w
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			img.SetRGBA(x, y, color.RGBA{
				R: clamp8(t.Data[i]),
				G: clamp8(t.Data[plane+i]),
				B: clamp8(t.Data[2*plane+i]),
				A: 0xff,
			})
		}
	}
	return img
}

func clamp8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v * 255)
}

// DrawRect draws a 2px rectangle outline clipped to the image bounds.
func DrawRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for t := 0; t < 2; t++ {
		for x := x0; x <= x1; x++ {
			set(img, x, y0+t, c)
			set(img, x, y1-t, c)
		}
		for y := y0; y <= y1; y++ {
			set(img, x0+t, y, c)
			set(img, x1-t, y, c)
		}
	}
}

// FillRect fills a solid rectangle clipped to the image bounds.
func FillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			set(img, x, y, c)
		}
	}
}

func set(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// SavePNG writes img to path, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Palette returns a stable per-class color.
func Palette(label int) color.RGBA {
	palette := []color.RGBA{
		{0xe6, 0x19, 0x4b, 0xff},
		{0x3c, 0xb4, 0x4b, 0xff},
		{0x43, 0x63, 0xd8, 0xff},
		{0xf5, 0x82, 0x31, 0xff},
		{0x91, 0x1e, 0xb4, 0xff},
		{0x46, 0xf0, 0xf0, 0xff},
	}
	if label < 0 {
		label = 0
	}
	return palette[label%len(palette)]
}
