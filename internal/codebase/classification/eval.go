package classification

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

// groundTruth is the classification truth schema inside a manifest.
type groundTruth struct {
	Label int `json:"label"`
}

type report struct {
	Dataset string             `json:"dataset"`
	Samples int                `json:"samples"`
	Metrics map[string]float64 `json:"metrics"`
}

// EvaluateOutputs scores predictions against ground-truth labels, or
// formats them for submission when opts.FormatOnly is set.
func (cb *Codebase) EvaluateOutputs(modelCfg config.ModelConfig, outputs codebase.Predictions, ds *dataset.Dataset, opts codebase.EvalOptions) error {
	if opts.FormatOnly {
		return cb.formatOutputs(outputs, ds, opts.OutputPath)
	}
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = []string{"accuracy"}
	}
	for _, m := range metrics {
		switch m {
		case "accuracy", "precision", "recall":
		default:
			return codebase.ErrUnsupportedMetric(Name, m)
		}
	}

	numClasses := modelCfg.Int("head.num_classes", 2)
	// per-class tallies for macro precision/recall
	tp := make([]int, numClasses)
	predicted := make([]int, numClasses)
	actual := make([]int, numClasses)
	scored, correct := 0, 0
	for i, s := range ds.Samples {
		if i >= len(outputs) {
			break
		}
		cls, ok := outputs[i].(Classification)
		if !ok {
			continue // skipped sample
		}
		var gt groundTruth
		if len(s.Truth) > 0 {
			_ = json.Unmarshal(s.Truth, &gt)
		}
		scored++
		if gt.Label >= 0 && gt.Label < numClasses {
			actual[gt.Label]++
		}
		if cls.Label >= 0 && cls.Label < numClasses {
			predicted[cls.Label]++
		}
		if cls.Label == gt.Label {
			correct++
			if gt.Label >= 0 && gt.Label < numClasses {
				tp[gt.Label]++
			}
		}
	}

	rep := report{Dataset: ds.Name, Samples: ds.Len(), Metrics: map[string]float64{}}
	for _, m := range metrics {
		switch m {
		case "accuracy":
			rep.Metrics["accuracy"] = ratio(correct, scored)
		case "precision":
			rep.Metrics["precision"] = macro(tp, predicted)
		case "recall":
			rep.Metrics["recall"] = macro(tp, actual)
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

func (cb *Codebase) formatOutputs(outputs codebase.Predictions, ds *dataset.Dataset, outputPath string) error {
	if outputPath == "" {
		return errors.New("format-only evaluation needs an output path")
	}
	type entry struct {
		SampleID string         `json:"sample_id"`
		Result   Classification `json:"result"`
	}
	var formatted []entry
	for i, s := range ds.Samples {
		if i >= len(outputs) {
			break
		}
		cls, ok := outputs[i].(Classification)
		if !ok {
			continue
		}
		formatted = append(formatted, entry{SampleID: s.ID, Result: cls})
	}
	return writeJSON(outputPath, formatted)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// macro averages per-class ratios over classes that appear.
func macro(num, den []int) float64 {
	var sum float64
	var n int
	for c := range num {
		if den[c] == 0 {
			continue
		}
		sum += float64(num[c]) / float64(den[c])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
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
