package detection

import (
	"fmt"
	"math"
	"os"

	json "github.com/goccy/go-json"

	"github.com/tongda/mmdeploy/internal/codebase"
)

// featDim is the per-cell feature vector size: mean R/G/B plus a bias
// term.
const featDim = 4

// weightsFile is the numerical content of a checkpoint or backend
// payload: one linear scorer per class over grid-cell features.
type weightsFile struct {
	NumClasses int         `json:"num_classes"`
	Grid       int         `json:"grid"`
	Weights    [][]float32 `json:"weights"`
	Bias       []float32   `json:"bias"`
}

func (w weightsFile) validate() error {
	if w.NumClasses < 1 {
		return fmt.Errorf("num_classes must be positive, got %d", w.NumClasses)
	}
	if len(w.Weights) != w.NumClasses || len(w.Bias) != w.NumClasses {
		return fmt.Errorf("weight shape mismatch: %d classes, %d weight rows, %d biases",
			w.NumClasses, len(w.Weights), len(w.Bias))
	}
	for i, row := range w.Weights {
		if len(row) != featDim {
			return fmt.Errorf("weight row %d has %d features, want %d", i, len(row), featDim)
		}
	}
	return nil
}

// model is the detector behind both handle kinds; reference and backend
// differ only in provenance, never in math.
type model struct {
	kind     codebase.ModelKind
	cfgName  string
	scoreThr float32
	w        weightsFile
}

func (m *model) Kind() codebase.ModelKind { return m.kind }
func (m *model) Close() error             { return nil }

// defaultWeights builds a deterministic initialization so a run without
// a checkpoint is still reproducible.
func defaultWeights(numClasses, grid int) weightsFile {
	w := weightsFile{NumClasses: numClasses, Grid: grid}
	for c := 0; c < numClasses; c++ {
		row := make([]float32, featDim)
		for f := 0; f < featDim; f++ {
			row[f] = float32((c+1)*(f+2)%7)/7.0 - 0.4
		}
		w.Weights = append(w.Weights, row)
		w.Bias = append(w.Bias, float32(c%3)*0.1-0.1)
	}
	return w
}

// loadCheckpoint reads and validates a weights file from disk.
func loadCheckpoint(path string) (weightsFile, error) {
	var w weightsFile
	b, err := os.ReadFile(path)
	if err != nil {
		return w, err
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return w, err
	}
	if err := w.validate(); err != nil {
		return w, err
	}
	return w, nil
}

func encodeWeights(w weightsFile) ([]byte, error) { return json.Marshal(w) }

func decodeWeights(b []byte, w *weightsFile) error {
	if err := json.Unmarshal(b, w); err != nil {
		return err
	}
	return w.validate()
}

// Detection is one predicted box in original-image coordinates.
type Detection struct {
	Bbox  [4]float64 `json:"bbox"`
	Score float64    `json:"score"`
	Label int        `json:"label"`
}

// forward scores every grid cell against every class and emits a box
// for each (cell, class) whose sigmoid score clears the threshold.
func (m *model) forward(feats [][]float32, meta codebase.Meta) []Detection {
	grid := m.w.Grid
	var dets []Detection
	cellH := float64(meta.OrigHeight) / float64(grid)
	cellW := float64(meta.OrigWidth) / float64(grid)
	for cell, f := range feats {
		cy, cx := cell/grid, cell%grid
		for c := 0; c < m.w.NumClasses; c++ {
			var z float32
			for i := 0; i < featDim; i++ {
				z += m.w.Weights[c][i] * f[i]
			}
			z += m.w.Bias[c]
			score := 1.0 / (1.0 + math.Exp(-float64(z)))
			if score < float64(m.scoreThr) {
				continue
			}
			dets = append(dets, Detection{
				Bbox: [4]float64{
					float64(cx) * cellW,
					float64(cy) * cellH,
					float64(cx+1) * cellW,
					float64(cy+1) * cellH,
				},
				Score: score,
				Label: c,
			})
		}
	}
	return dets
}
