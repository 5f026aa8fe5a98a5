// Package pipeline holds the preprocessing steps shared by the built-in
// codebases: decode, resize, and batch assembly.
package pipeline

import (
	"errors"

	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/common/imaging"
	"github.com/tongda/mmdeploy/pkg/types"
)

// BatchInput decodes imgs into one NCHW batch tensor. inputShape is
// (height, width); when nil, every image is resized to the largest
// shape in the batch, so mixed-shape batches pay a padding cost. An
// image that fails to decode yields an unsupported-input error naming
// the image.
func BatchInput(imgs []types.ImageSource, inputShape []int) (*codebase.Input, error) {
	if len(imgs) == 0 {
		return nil, errors.New("no input images")
	}
	decoded := make([]types.Tensor, len(imgs))
	metas := make([]codebase.Meta, len(imgs))
	maxH, maxW := 0, 0
	for i, img := range imgs {
		t, h, w, err := imaging.Decode(img)
		if err != nil {
			return nil, codebase.ErrUnsupportedInput(img.Name(), err)
		}
		decoded[i] = t
		metas[i] = codebase.Meta{SampleID: img.Name(), OrigHeight: h, OrigWidth: w}
		if h > maxH {
			maxH = h
		}
		if w > maxW {
			maxW = w
		}
	}
	tgtH, tgtW := maxH, maxW
	if len(inputShape) == 2 && inputShape[0] > 0 && inputShape[1] > 0 {
		tgtH, tgtW = inputShape[0], inputShape[1]
	}
	batch := types.Tensor{
		Shape: []int{len(imgs), 3, tgtH, tgtW},
		Data:  make([]float32, len(imgs)*3*tgtH*tgtW),
	}
	per := 3 * tgtH * tgtW
	for i, t := range decoded {
		r := imaging.Resize(t, tgtH, tgtW)
		copy(batch.Data[i*per:(i+1)*per], r.Data)
		metas[i].ScaleH = float64(tgtH) / float64(metas[i].OrigHeight)
		metas[i].ScaleW = float64(tgtW) / float64(metas[i].OrigWidth)
	}
	return &codebase.Input{Metas: metas, Tensor: batch}, nil
}

// CellFeatures averages batch element n of a NCHW tensor over a
// grid×grid lattice and returns one feature vector per cell:
// [meanR, meanG, meanB, 1].
func CellFeatures(t types.Tensor, n, grid int) [][]float32 {
	if len(t.Shape) != 4 || grid < 1 {
		return nil
	}
	c, h, w := t.Shape[1], t.Shape[2], t.Shape[3]
	base := n * c * h * w
	feats := make([][]float32, grid*grid)
	for cy := 0; cy < grid; cy++ {
		y0, y1 := cy*h/grid, (cy+1)*h/grid
		for cx := 0; cx < grid; cx++ {
			x0, x1 := cx*w/grid, (cx+1)*w/grid
			f := make([]float32, 4)
			area := float32((y1 - y0) * (x1 - x0))
			if area == 0 {
				area = 1
			}
			for ch := 0; ch < 3 && ch < c; ch++ {
				var sum float32
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						sum += t.Data[base+ch*h*w+y*w+x]
					}
				}
				f[ch] = sum / area
			}
			f[3] = 1
			feats[cy*grid+cx] = f
		}
	}
	return feats
}

// ImageFeatures averages batch element n over the whole image:
// [meanR, meanG, meanB, 1].
func ImageFeatures(t types.Tensor, n int) []float32 {
	cells := CellFeatures(t, n, 1)
	if len(cells) == 0 {
		return []float32{0, 0, 0, 1}
	}
	return cells[0]
}
