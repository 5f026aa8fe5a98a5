package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/tongda/mmdeploy/pkg/types"
)

// encodePNG builds a small solid-color test image in memory.
func encodePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeShapeAndRange(t *testing.T) {
	b := encodePNG(t, 4, 3, color.RGBA{R: 0xff, A: 0xff})
	ten, h, w, err := Decode(types.ImageFromBytes(b))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h != 3 || w != 4 {
		t.Fatalf("expected 3x4 got %dx%d", h, w)
	}
	if len(ten.Shape) != 3 || ten.Shape[0] != 3 || ten.Numel() != 3*3*4 {
		t.Fatalf("unexpected tensor shape %v", ten.Shape)
	}
	// red channel saturated, green empty
	if ten.Data[0] < 0.99 {
		t.Fatalf("expected red ~1.0 got %v", ten.Data[0])
	}
	if ten.Data[3*4] > 0.01 {
		t.Fatalf("expected green ~0 got %v", ten.Data[3*4])
	}
}

func TestDecodeRejectsUnknownEncoding(t *testing.T) {
	_, _, _, err := Decode(types.ImageFromBytes([]byte("definitely not an image")))
	if err == nil {
		t.Fatalf("expected decode error for unknown encoding")
	}
}

func TestDecodeMissingFile(t *testing.T) {
	_, _, _, err := Decode(types.ImageFromFile(filepath.Join(t.TempDir(), "missing.png")))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestResize(t *testing.T) {
	src := types.Tensor{Shape: []int{1, 2, 2}, Data: []float32{1, 0, 0, 1}}
	// pad channels so Resize sees CHW with c=1
	out := Resize(src, 4, 4)
	if out.Shape[1] != 4 || out.Shape[2] != 4 {
		t.Fatalf("expected 4x4 got %v", out.Shape)
	}
	if out.Data[0] != 1 || out.Data[3] != 0 {
		t.Fatalf("nearest-neighbor content wrong: %v", out.Data)
	}
	// same-size resize returns the input untouched
	same := Resize(src, 2, 2)
	if &same.Data[0] != &src.Data[0] {
		t.Fatalf("expected no-op resize to share data")
	}
}

func TestSavePNGCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.png")
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	DrawRect(img, 0, 0, 1, 1, Palette(0))
	FillRect(img, 0, 0, 0, 0, Palette(1))
	if err := SavePNG(p, img); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}
