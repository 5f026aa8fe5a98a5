// Package detection is the object-detection codebase plugin. The
// detector itself is a toy grid scorer; what matters here is that it
// exercises the full dispatch contract: both model representations,
// preprocessing, inference, evaluation, visualization, and partitioned
// export.
package detection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/artifact"
	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/common/imaging"
	"github.com/tongda/mmdeploy/internal/codebase/pipeline"
	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/dataset"
	"github.com/tongda/mmdeploy/internal/partition"
	"github.com/tongda/mmdeploy/pkg/types"
)

// Name is the registry identifier of this codebase.
const Name = "detection"

// Codebase implements the detection plugin. The value is stateless;
// the logger is configuration, not state.
type Codebase struct {
	log zerolog.Logger
}

// New returns the detection plugin.
func New(log zerolog.Logger) *Codebase {
	return &Codebase{log: log.With().Str("codebase", Name).Logger()}
}

// RegisterPartitions installs the partition schemes this domain knows
// how to describe. Called once at startup.
func RegisterPartitions() {
	partition.MustRegister(Name, "end2end", partition.Spec{Partitions: []partition.Partition{
		{Name: "model", Start: []string{"input"}, End: []string{"dets", "labels"}, SaveFile: "end2end" + artifact.Ext},
	}})
	partition.MustRegister(Name, "single_stage_base", partition.Spec{Partitions: []partition.Partition{
		{Name: "part0", Start: []string{"input"}, End: []string{"scores", "boxes"}, SaveFile: "partition0" + artifact.Ext},
	}})
	partition.MustRegister(Name, "two_stage_base", partition.Spec{Partitions: []partition.Partition{
		{Name: "part0", Start: []string{"input"}, End: []string{"feat", "proposals"}, SaveFile: "two_stage_base" + artifact.Ext},
	}})
	partition.MustRegister(Name, "two_stage", partition.Spec{Partitions: []partition.Partition{
		{Name: "part0", Start: []string{"input"}, End: []string{"feat", "proposals"}, SaveFile: "two_stage_part0" + artifact.Ext},
		{Name: "part1", Start: []string{"feat", "proposals"}, End: []string{"dets", "labels"}, SaveFile: "two_stage_part1" + artifact.Ext},
	}})
}

func (cb *Codebase) Name() string { return Name }

// InitBackendModel loads compiled artifacts. Every file must be a valid
// artifact produced by this codebase; the weight table comes from the
// last partition, which carries the full set.
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
		if err := decodeWeights(payload, &w); err != nil {
			return nil, codebase.ErrBackendLoad(path, err)
		}
	}
	return cb.newModel(codebase.KindBackend, modelCfg, w), nil
}

// InitReferenceModel constructs the framework-native detector,
// optionally loading trained weights from checkpoint.
func (cb *Codebase) InitReferenceModel(modelCfg config.ModelConfig, checkpoint string, opts codebase.ReferenceOptions) (codebase.ModelHandle, error) {
	cfg := applyOverrides(modelCfg, opts.CfgOptions)
	w := defaultWeights(cfg.Int("head.num_classes", 2), cfg.Int("head.grid", 4))
	if checkpoint != "" {
		loaded, err := loadCheckpoint(checkpoint)
		if err != nil {
			return nil, codebase.ErrCheckpointLoad(checkpoint, err)
		}
		w = loaded
	}
	return cb.newModel(codebase.KindReference, cfg, w), nil
}

func (cb *Codebase) newModel(kind codebase.ModelKind, cfg config.ModelConfig, w weightsFile) *model {
	if w.Grid < 1 {
		w.Grid = 4
	}
	return &model{
		kind:     kind,
		cfgName:  cfg.Name,
		scoreThr: float32(cfg.Float("test.score_threshold", 0.6)),
		w:        w,
	}
}

// CreateInput decodes the raw images into one NCHW batch. With no
// explicit input shape every image is resized to the largest shape in
// the batch, which is exactly the padding the shape-sorting optimizer
// exists to minimize.
func (cb *Codebase) CreateInput(imgs []types.ImageSource, inputShape []int) (*codebase.Input, error) {
	return pipeline.BatchInput(imgs, inputShape)
}

// RunInference executes one forward pass of the detector.
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
	for i, meta := range in.Metas {
		feats := pipeline.CellFeatures(tensor, i, m.w.Grid)
		out[i] = m.forward(feats, meta)
	}
	return out, nil
}

// Visualize draws the predicted boxes over the input image and writes
// the result to outputPath.
func (cb *Codebase) Visualize(_ codebase.ModelHandle, img types.ImageSource, preds any, outputPath, windowName string, show bool) error {
	dets, ok := preds.([]Detection)
	if !ok {
		return fmt.Errorf("foreign predictions %T", preds)
	}
	t, _, _, err := imaging.Decode(img)
	if err != nil {
		return codebase.ErrUnsupportedInput(img.Name(), err)
	}
	canvas := imaging.ToImage(t)
	for _, d := range dets {
		imaging.DrawRect(canvas,
			int(d.Bbox[0]), int(d.Bbox[1]), int(d.Bbox[2]), int(d.Bbox[3]),
			imaging.Palette(d.Label))
	}
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

// ExportBackend compiles the reference model into one backend artifact.
func (cb *Codebase) ExportBackend(h codebase.ModelHandle, part partition.Partition, path string) error {
	m, ok := h.(*model)
	if !ok {
		return fmt.Errorf("foreign model handle %T", h)
	}
	payload, err := encodeWeights(m.w)
	if err != nil {
		return err
	}
	return artifact.Write(path, artifact.Header{
		Codebase:  Name,
		Model:     m.cfgName,
		Partition: part.Name,
	}, payload)
}

// applyOverrides copies cfg with the overrides layered on top of Raw.
// Dotted keys address nested maps, mirroring the config accessors.
func applyOverrides(cfg config.ModelConfig, overrides map[string]any) config.ModelConfig {
	if len(overrides) == 0 {
		return cfg
	}
	raw := deepCopy(cfg.Raw)
	for k, v := range overrides {
		setPath(raw, k, v)
	}
	cfg.Raw = raw
	return cfg
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopy(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func setPath(m map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		sub, ok := m[p].(map[string]any)
		if !ok {
			sub = map[string]any{}
			m[p] = sub
		}
		m = sub
	}
	m[parts[len(parts)-1]] = v
}
