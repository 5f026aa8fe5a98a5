package detection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/dataset"
)

const iouThreshold = 0.5

// groundTruth is the detection truth schema inside a dataset manifest.
type groundTruth struct {
	Boxes []struct {
		Bbox  [4]float64 `json:"bbox"`
		Label int        `json:"label"`
	} `json:"boxes"`
}

// report is the scored evaluation result written to the output path.
type report struct {
	Dataset string             `json:"dataset"`
	Samples int                `json:"samples"`
	Metrics map[string]float64 `json:"metrics"`
}

// EvaluateOutputs scores predictions against the manifest ground truth,
// or formats them for submission when opts.FormatOnly is set.
func (cb *Codebase) EvaluateOutputs(modelCfg config.ModelConfig, outputs codebase.Predictions, ds *dataset.Dataset, opts codebase.EvalOptions) error {
	if opts.FormatOnly {
		return cb.formatOutputs(outputs, ds, opts.OutputPath)
	}
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = []string{"mAP", "recall"}
	}
	for _, m := range metrics {
		if m != "mAP" && m != "recall" {
			return codebase.ErrUnsupportedMetric(Name, m)
		}
	}

	matched, predicted, truths := 0, 0, 0
	for i, s := range ds.Samples {
		if i >= len(outputs) {
			break
		}
		gt := decodeTruth(s.Truth)
		truths += len(gt.Boxes)
		dets, _ := outputs[i].([]Detection)
		predicted += len(dets)
		matched += matchCount(dets, gt)
	}

	rep := report{Dataset: ds.Name, Samples: ds.Len(), Metrics: map[string]float64{}}
	for _, m := range metrics {
		switch m {
		case "mAP":
			rep.Metrics["mAP"] = ratio(matched, predicted)
		case "recall":
			rep.Metrics["recall"] = ratio(matched, truths)
		}
	}
	for name, v := range rep.Metrics {
		cb.log.Info().Str("metric", name).Float64("value", v).Msg("evaluation result")
	}
	if opts.OutputPath != "" {
		return writeJSON(opts.OutputPath, rep)
	}
	return nil
}

// formatOutputs writes raw predictions in submission format without
// scoring them. Metrics are not consulted at all on this path.
func (cb *Codebase) formatOutputs(outputs codebase.Predictions, ds *dataset.Dataset, outputPath string) error {
	if outputPath == "" {
		return errors.New("format-only evaluation needs an output path")
	}
	type entry struct {
		SampleID   string      `json:"sample_id"`
		Detections []Detection `json:"detections"`
	}
	var formatted []entry
	for i, s := range ds.Samples {
		if i >= len(outputs) {
			break
		}
		dets, _ := outputs[i].([]Detection)
		formatted = append(formatted, entry{SampleID: s.ID, Detections: dets})
	}
	return writeJSON(outputPath, formatted)
}

func decodeTruth(raw json.RawMessage) groundTruth {
	var gt groundTruth
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &gt)
	}
	return gt
}

// matchCount greedily pairs predictions to ground-truth boxes of the
// same label at IoU >= 0.5; each truth matches at most once.
func matchCount(dets []Detection, gt groundTruth) int {
	used := make([]bool, len(gt.Boxes))
	n := 0
	for _, d := range dets {
		for j, box := range gt.Boxes {
			if used[j] || box.Label != d.Label {
				continue
			}
			if iou(d.Bbox, box.Bbox) >= iouThreshold {
				used[j] = true
				n++
				break
			}
		}
	}
	return n
}

func iou(a, b [4]float64) float64 {
	x0, y0 := max64(a[0], b[0]), max64(a[1], b[1])
	x1, y1 := min64(a[2], b[2]), min64(a[3], b[3])
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	inter := (x1 - x0) * (y1 - y0)
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
