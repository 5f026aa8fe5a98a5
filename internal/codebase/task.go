package codebase

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/dataset"
	"github.com/tongda/mmdeploy/internal/partition"
	"github.com/tongda/mmdeploy/pkg/types"
)

// Task binds one deployment run to the codebase that owns it. The
// binding is resolved exactly once at construction and never changes.
type Task struct {
	ModelCfg  config.ModelConfig
	DeployCfg config.DeployConfig
	Device    string
	RunID     string

	cb  Codebase
	log zerolog.Logger
}

// NewTask resolves the codebase named in the deploy config and returns
// a task permanently bound to it.
func NewTask(modelCfg config.ModelConfig, deployCfg config.DeployConfig, device string, log zerolog.Logger) (*Task, error) {
	cb, err := Resolve(deployCfg.Codebase)
	if err != nil {
		return nil, err
	}
	if device == "" {
		device = deployCfg.Device
	}
	t := &Task{
		ModelCfg:  modelCfg,
		DeployCfg: deployCfg,
		Device:    device,
		RunID:     uuid.NewString(),
		cb:        cb,
		log:       log.With().Str("codebase", cb.Name()).Logger(),
	}
	return t, nil
}

// Codebase returns the plugin the task is bound to.
func (t *Task) Codebase() Codebase { return t.cb }

// InitBackendModel loads the compiled backend artifact files.
func (t *Task) InitBackendModel(modelFiles []string) (ModelHandle, error) {
	return t.cb.InitBackendModel(t.ModelCfg, modelFiles, BackendOptions{Device: t.Device})
}

// InitReferenceModel constructs the reference model, optionally loading
// weights from checkpoint.
func (t *Task) InitReferenceModel(checkpoint string, cfgOptions map[string]any) (ModelHandle, error) {
	return t.cb.InitReferenceModel(t.ModelCfg, checkpoint, ReferenceOptions{
		Device:     t.Device,
		CfgOptions: cfgOptions,
	})
}

// CreateInput preprocesses raw images using the deploy config's input
// shape unless an explicit shape is given.
func (t *Task) CreateInput(imgs []types.ImageSource, inputShape []int) (*Input, error) {
	if inputShape == nil {
		inputShape = t.DeployCfg.InputShape
	}
	return t.cb.CreateInput(imgs, inputShape)
}

// GetPartitionCfg resolves the partition scheme for the bound codebase.
func (t *Task) GetPartitionCfg(partitionType string) (partition.Spec, error) {
	return t.cb.GetPartitionCfg(partitionType)
}

// BuildDataset loads the split's dataset and, when sortByShape is set,
// reorders it by ascending (height, width) so batches pad less. An
// unsortable dataset is an informational notice, never an error.
func (t *Task) BuildDataset(split string, sortByShape bool) (*dataset.Dataset, error) {
	ds, err := t.cb.BuildDataset(t.ModelCfg, split)
	if err != nil {
		return nil, err
	}
	if sortByShape {
		if dataset.CanSort(ds) {
			dataset.Sort(ds)
		} else {
			t.log.Info().Str("dataset", ds.Name).
				Msg("sorting the dataset by height and width is not possible")
		}
	}
	return ds, nil
}

// BuildDataloader wraps ds in a batch iterator.
func (t *Task) BuildDataloader(ds *dataset.Dataset, batchSize, workers int) *dataset.Loader {
	return t.cb.BuildDataloader(ds, batchSize, workers)
}

// RunOptions controls a SingleRunTest pass.
type RunOptions struct {
	// Directory visualizations are written to; empty disables them.
	ShowDir string
	// Forwarded to Visualize for interactive display.
	Show bool
	// Called after each batch with cumulative progress; may be nil.
	OnProgress func(done, total int)
}

// SingleRunTest drives one full inference pass of model over the
// loader and returns predictions aligned with the dataset order. An
// undecodable sample is logged and skipped with a nil prediction so a
// bad image never aborts the whole evaluation.
func (t *Task) SingleRunTest(model ModelHandle, loader *dataset.Loader, opts RunOptions) (Predictions, error) {
	defer loader.Close()
	var (
		results Predictions
		done    int
		total   = loader.Batches()
	)
	for {
		batch, ok := loader.Next()
		if !ok {
			break
		}
		preds, err := t.runBatch(model, batch, opts)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", batch.Index, err)
		}
		results = append(results, preds...)
		done++
		if opts.OnProgress != nil {
			opts.OnProgress(done, total)
		}
	}
	return results, nil
}

// runBatch preprocesses and infers one batch. When the whole-batch
// CreateInput fails on input data it retries image by image so only the
// offending samples drop out.
func (t *Task) runBatch(model ModelHandle, batch dataset.Batch, opts RunOptions) (Predictions, error) {
	imgs := make([]types.ImageSource, len(batch.Samples))
	for i, s := range batch.Samples {
		imgs[i] = s.Image
	}
	in, err := t.CreateInput(imgs, nil)
	if err != nil {
		if !IsUnsupportedInput(err) {
			return nil, err
		}
		return t.runBatchPerSample(model, batch, opts)
	}
	preds, err := t.cb.RunInference(model, in)
	if err != nil {
		return nil, err
	}
	t.visualizeBatch(model, batch, preds, opts)
	return preds, nil
}

func (t *Task) runBatchPerSample(model ModelHandle, batch dataset.Batch, opts RunOptions) (Predictions, error) {
	preds := make(Predictions, len(batch.Samples))
	for i, s := range batch.Samples {
		in, err := t.CreateInput([]types.ImageSource{s.Image}, nil)
		if err != nil {
			if IsUnsupportedInput(err) {
				t.log.Warn().Str("sample", s.ID).Err(err).Msg("skipping undecodable sample")
				continue
			}
			return nil, err
		}
		out, err := t.cb.RunInference(model, in)
		if err != nil {
			return nil, err
		}
		if len(out) > 0 {
			preds[i] = out[0]
		}
		t.visualizeBatch(model, dataset.Batch{Samples: batch.Samples[i : i+1]}, out, opts)
	}
	return preds, nil
}

func (t *Task) visualizeBatch(model ModelHandle, batch dataset.Batch, preds Predictions, opts RunOptions) {
	if opts.ShowDir == "" {
		return
	}
	for i, s := range batch.Samples {
		if i >= len(preds) || preds[i] == nil {
			continue
		}
		out := filepath.Join(opts.ShowDir, s.ID+".png")
		if err := t.cb.Visualize(model, s.Image, preds[i], out, s.ID, opts.Show); err != nil {
			t.log.Warn().Str("sample", s.ID).Err(err).Msg("visualization failed")
		}
	}
}

// EvaluateOutputs applies domain scoring to a finished run.
func (t *Task) EvaluateOutputs(outputs Predictions, ds *dataset.Dataset, opts EvalOptions) error {
	return t.cb.EvaluateOutputs(t.ModelCfg, outputs, ds, opts)
}
