// Package classification is the image-classification codebase plugin:
// a linear softmax scorer over global image features, implementing the
// full dispatch contract for single-label classification.
package classification

import (
	"errors"
	"fmt"
	"math"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/artifact"
	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/codebase/pipeline"
	"github.com/tongda/mmdeploy/internal/common/imaging"
	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/dataset"
	"github.com/tongda/mmdeploy/internal/partition"
	"github.com/tongda/mmdeploy/pkg/types"
)

// Name is the registry identifier of this codebase.
const Name = "classification"

const featDim = 4

// Codebase implements the classification plugin.
type Codebase struct {
	log zerolog.Logger
}

// New returns the classification plugin.
func New(log zerolog.Logger) *Codebase {
	return &Codebase{log: log.With().Str("codebase", Name).Logger()}
}

// RegisterPartitions installs the partition schemes for this domain.
// Classifiers deploy as a single graph.
func RegisterPartitions() {
	partition.MustRegister(Name, "end2end", partition.Spec{Partitions: []partition.Partition{
		{Name: "model", Start: []string{"input"}, End: []string{"probs"}, SaveFile: "end2end" + artifact.Ext},
	}})
}

// weightsFile is the checkpoint and backend payload schema.
type weightsFile struct {
	NumClasses int         `json:"num_classes"`
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

type model struct {
	kind    codebase.ModelKind
	cfgName string
	topK    int
	w       weightsFile
}

func (m *model) Kind() codebase.ModelKind { return m.kind }
func (m *model) Close() error             { return nil }

func defaultWeights(numClasses int) weightsFile {
	w := weightsFile{NumClasses: numClasses}
	for c := 0; c < numClasses; c++ {
		row := make([]float32, featDim)
		for f := 0; f < featDim; f++ {
			row[f] = float32((c+2)*(f+1)%5)/5.0 - 0.3
		}
		w.Weights = append(w.Weights, row)
		w.Bias = append(w.Bias, float32(c%2)*0.05)
	}
	return w
}

func (cb *Codebase) Name() string { return Name }

// InitBackendModel loads a compiled classifier artifact.
func (cb *Codebase) InitBackendModel(modelCfg config.ModelConfig, modelFiles []string, _ codebase.BackendOptions) (codebase.ModelHandle, error) {
	if len(modelFiles) == 0 {
		return nil, codebase.ErrBackendLoad("(none)", errors.New("no model files given"))
	}
	var w weightsFile
	for _, path := range modelFiles {
		h, payload, err := artifact.Read(path)
		if err != nil {
			return nil, codebase.ErrBackendLoad(path, err)
		}
		if h.Codebase != Name {
			return nil, codebase.ErrBackendLoad(path, fmt.Errorf("artifact belongs to codebase %q", h.Codebase))
		}
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, codebase.ErrBackendLoad(path, err)
		}
		if err := w.validate(); err != nil {
			return nil, codebase.ErrBackendLoad(path, err)
		}
	}
	return cb.newModel(codebase.KindBackend, modelCfg, w), nil
}

// InitReferenceModel constructs the classifier, optionally loading a
// checkpoint.
func (cb *Codebase) InitReferenceModel(modelCfg config.ModelConfig, checkpoint string, opts codebase.ReferenceOptions) (codebase.ModelHandle, error) {
	w := defaultWeights(modelCfg.Int("head.num_classes", 2))
	if checkpoint != "" {
		b, err := os.ReadFile(checkpoint)
		if err != nil {
			return nil, codebase.ErrCheckpointLoad(checkpoint, err)
		}
		var loaded weightsFile
		if err := json.Unmarshal(b, &loaded); err != nil {
			return nil, codebase.ErrCheckpointLoad(checkpoint, err)
		}
		if err := loaded.validate(); err != nil {
			return nil, codebase.ErrCheckpointLoad(checkpoint, err)
		}
		w = loaded
	}
	return cb.newModel(codebase.KindReference, modelCfg, w), nil
}

func (cb *Codebase) newModel(kind codebase.ModelKind, cfg config.ModelConfig, w weightsFile) *model {
	topK := cfg.Int("test.topk", 1)
	if topK < 1 {
		topK = 1
	}
	if topK > w.NumClasses {
		topK = w.NumClasses
	}
	return &model{kind: kind, cfgName: cfg.Name, topK: topK, w: w}
}

// CreateInput decodes the raw images into one NCHW batch.
func (cb *Codebase) CreateInput(imgs []types.ImageSource, inputShape []int) (*codebase.Input, error) {
	return pipeline.BatchInput(imgs, inputShape)
}

// ScoredLabel is one (class, probability) pair.
type ScoredLabel struct {
	Label int     `json:"label"`
	Score float64 `json:"score"`
}

// Classification is the prediction for one image: the argmax class and
// the top-k distribution behind it.
type Classification struct {
	Label int           `json:"label"`
	Score float64       `json:"score"`
	TopK  []ScoredLabel `json:"topk,omitempty"`
}

// RunInference executes one forward pass of the classifier.
func (cb *Codebase) RunInference(h codebase.ModelHandle, in *codebase.Input) (codebase.Predictions, error) {
	m, ok := h.(*model)
	if !ok {
		return nil, fmt.Errorf("foreign model handle %T", h)
	}
	if in == nil || len(in.Metas) == 0 {
		return nil, errors.New("empty model input")
	}
	tensor := codebase.GetTensorFromInput(in)
	out := make(codebase.Predictions, len(in.Metas))
	for i := range in.Metas {
		out[i] = m.forward(pipeline.ImageFeatures(tensor, i))
	}
	return out, nil
}

// forward computes softmax class probabilities over global features.
func (m *model) forward(f []float32) Classification {
	logits := make([]float64, m.w.NumClasses)
	maxLogit := math.Inf(-1)
	for c := 0; c < m.w.NumClasses; c++ {
		var z float64
		for i := 0; i < featDim && i < len(f); i++ {
			z += float64(m.w.Weights[c][i] * f[i])
		}
		z += float64(m.w.Bias[c])
		logits[c] = z
		if z > maxLogit {
			maxLogit = z
		}
	}
	var denom float64
	for c, z := range logits {
		logits[c] = math.Exp(z - maxLogit)
		denom += logits[c]
	}
	scored := make([]ScoredLabel, m.w.NumClasses)
	for c, e := range logits {
		scored[c] = ScoredLabel{Label: c, Score: e / denom}
	}
	// selection sort is plenty for a handful of classes
	for i := 0; i < m.topK; i++ {
		best := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].Score > scored[best].Score {
				best = j
			}
		}
		scored[i], scored[best] = scored[best], scored[i]
	}
	return Classification{
		Label: scored[0].Label,
		Score: scored[0].Score,
		TopK:  append([]ScoredLabel(nil), scored[:m.topK]...),
	}
}

// Visualize marks the input image with the predicted class color: a
// border plus a filled badge in the top-left corner.
func (cb *Codebase) Visualize(_ codebase.ModelHandle, img types.ImageSource, preds any, outputPath, windowName string, show bool) error {
	cls, ok := preds.(Classification)
	if !ok {
		return fmt.Errorf("foreign predictions %T", preds)
	}
	t, h, w, err := imaging.Decode(img)
	if err != nil {
		return codebase.ErrUnsupportedInput(img.Name(), err)
	}
	canvas := imaging.ToImage(t)
	c := imaging.Palette(cls.Label)
	imaging.DrawRect(canvas, 0, 0, w-1, h-1, c)
	badge := h / 8
	if badge < 4 {
		badge = 4
	}
	imaging.FillRect(canvas, 0, 0, badge, badge, c)
	if show {
		cb.log.Debug().Str("window", windowName).
			Msg("interactive display is unavailable; writing file only")
	}
	return imaging.SavePNG(outputPath, canvas)
}

// GetPartitionCfg resolves a partition scheme for this domain.
func (cb *Codebase) GetPartitionCfg(partitionType string) (partition.Spec, error) {
	return partition.Resolve(Name, partitionType)
}

// BuildDataset loads the split's manifest-backed dataset.
func (cb *Codebase) BuildDataset(modelCfg config.ModelConfig, split string) (*dataset.Dataset, error) {
	return dataset.Build(modelCfg, split)
}

// BuildDataloader wraps ds in a batch iterator.
func (cb *Codebase) BuildDataloader(ds *dataset.Dataset, batchSize, workers int) *dataset.Loader {
	return dataset.NewLoader(ds, batchSize, workers)
}

// ExportBackend compiles the reference classifier into one artifact.
func (cb *Codebase) ExportBackend(h codebase.ModelHandle, part partition.Partition, path string) error {
	m, ok := h.(*model)
	if !ok {
		return fmt.Errorf("foreign model handle %T", h)
	}
	payload, err := json.Marshal(m.w)
	if err != nil {
		return err
	}
	return artifact.Write(path, artifact.Header{
		Codebase:  Name,
		Model:     m.cfgName,
		Partition: part.Name,
	}, payload)
}
