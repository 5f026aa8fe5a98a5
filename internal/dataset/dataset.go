// Package dataset holds the evaluation dataset model and the
// shape-sorting optimization used before batched inference. Batched
// inference pads every sample in a batch to the largest shape in the
// batch; grouping similarly-shaped samples adjacently reduces that
// padding waste. Sorting is a throughput optimization only and never
// changes evaluation results.
package dataset

import (
	"sort"

	json "github.com/goccy/go-json"

	"github.com/tongda/mmdeploy/pkg/types"
)

// Sample is one evaluation example. Height and Width are optional shape
// metadata (0 means unknown). Truth carries codebase-specific ground
// truth; the core never interprets it.
type Sample struct {
	ID     string            `json:"id"`
	Image  types.ImageSource `json:"-"`
	Height int               `json:"height"`
	Width  int               `json:"width"`
	Truth  json.RawMessage   `json:"truth,omitempty"`
}

// HasShape reports whether both height and width are known.
func (s Sample) HasShape() bool { return s.Height > 0 && s.Width > 0 }

// Dataset is an ordered sequence of samples. The optimizer may reorder
// the sequence in place; sample identity and count are invariant.
type Dataset struct {
	Name    string
	Samples []Sample
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Samples) }

// CanSort reports whether the dataset can be sorted by shape: true only
// if every sample exposes both height and width. A single sample
// without shape metadata makes the whole dataset unsortable.
func CanSort(d *Dataset) bool {
	for _, s := range d.Samples {
		if !s.HasShape() {
			return false
		}
	}
	return true
}

// Sort reorders samples in place by ascending (height, width). The sort
// is stable, so samples with identical shapes keep their original
// relative order. When CanSort is false this is a no-op; callers are
// expected to have checked first.
func Sort(d *Dataset) {
	if !CanSort(d) {
		return
	}
	sort.SliceStable(d.Samples, func(i, j int) bool {
		a, b := d.Samples[i], d.Samples[j]
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		return a.Width < b.Width
	})
}
