// Package codebase defines the plugin contract every ML problem domain
// implements, the process-wide registry that maps codebase identifiers
// to plugins, and the deployment Task that binds one run to exactly one
// codebase. The generic deployment pipeline talks only to this package;
// domain specifics (model numerics, metric math, artifact formats) live
// behind the Codebase interface.
package codebase

import (
	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/dataset"
	"github.com/tongda/mmdeploy/internal/partition"
	"github.com/tongda/mmdeploy/pkg/types"
)

// ModelKind distinguishes the two interchangeable model representations
// a run can drive: the framework-native reference model and the
// compiled backend artifact.
type ModelKind string

const (
	KindReference ModelKind = "reference"
	KindBackend   ModelKind = "backend"
)

// ModelHandle is an opaque loaded model. Whatever state a model carries
// lives behind the handle; the Codebase value that produced it is
// stateless and may be shared across goroutines.
type ModelHandle interface {
	Kind() ModelKind
	Close() error
}

// Meta describes one original image behind a preprocessed tensor; it is
// what a plugin needs to undo preprocessing during post-processing.
type Meta struct {
	SampleID   string
	OrigHeight int
	OrigWidth  int
	// Scale factors applied when resizing to the model input shape.
	ScaleH float64
	ScaleW float64
}

// Input pairs a batched model-consumable tensor with per-image
// metadata. Metas[i] corresponds to batch element i of Tensor.
type Input struct {
	Metas  []Meta
	Tensor types.Tensor
}

// Predictions holds codebase-specific inference outputs, one element
// per input image. The core never inspects the elements; a nil element
// marks a sample that was skipped (e.g. undecodable input).
type Predictions []any

// EvalOptions carries the optional knobs of EvaluateOutputs.
type EvalOptions struct {
	// Metric names to compute; which names exist is up to the domain.
	Metrics []string
	// Optional file the scored report or formatted predictions are
	// written to.
	OutputPath string
	// Domain-specific evaluation options.
	MetricOptions map[string]any
	// When set, format predictions for external submission without
	// scoring them; Metrics may be empty.
	FormatOnly bool
}

// BackendOptions carries the optional knobs of InitBackendModel.
type BackendOptions struct {
	Device string
}

// ReferenceOptions carries the optional knobs of InitReferenceModel.
type ReferenceOptions struct {
	Device string
	// Config key/value overrides applied on top of the model config.
	CfgOptions map[string]any
}

// Codebase is the per-domain plugin contract. Implementations are
// stateless: every method is independent and idempotent with respect to
// the plugin value itself.
type Codebase interface {
	// Name returns the registry identifier of the plugin.
	Name() string

	// InitBackendModel loads a compiled backend artifact from one or
	// more files. Missing or corrupt files yield a backend-load error.
	InitBackendModel(modelCfg config.ModelConfig, modelFiles []string, opts BackendOptions) (ModelHandle, error)

	// InitReferenceModel constructs the uncompiled reference model,
	// optionally loading trained weights from checkpoint (empty string
	// means default initialization). An unreadable or shape-incompatible
	// checkpoint yields a checkpoint-load error.
	InitReferenceModel(modelCfg config.ModelConfig, checkpoint string, opts ReferenceOptions) (ModelHandle, error)

	// CreateInput converts raw images into the model input plus the
	// metadata needed to reverse preprocessing. inputShape is (height,
	// width); nil keeps original sizes. Unrecognized encodings yield an
	// unsupported-input error.
	CreateInput(imgs []types.ImageSource, inputShape []int) (*Input, error)

	// RunInference executes one forward pass. Pure with respect to the
	// handle: no shared model state mutates across calls and no history
	// is kept.
	RunInference(h ModelHandle, in *Input) (Predictions, error)

	// EvaluateOutputs scores predictions against dataset ground truth,
	// or formats them for submission when opts.FormatOnly is set. A
	// metric name the domain does not recognize yields an
	// unsupported-metric error before any scoring happens.
	EvaluateOutputs(modelCfg config.ModelConfig, outputs Predictions, ds *dataset.Dataset, opts EvalOptions) error

	// Visualize renders predictions for one image to outputPath.
	// Side-effect only; show requests an interactive window where the
	// environment supports one.
	Visualize(h ModelHandle, img types.ImageSource, preds any, outputPath, windowName string, show bool) error

	// GetPartitionCfg returns the declarative partition scheme the
	// domain registered under partitionType.
	GetPartitionCfg(partitionType string) (partition.Spec, error)

	// BuildDataset loads the evaluation dataset for a split as
	// described by the model config.
	BuildDataset(modelCfg config.ModelConfig, split string) (*dataset.Dataset, error)

	// BuildDataloader wraps a dataset in a batch iterator. workers
	// bounds the prefetch depth; the returned iterator is consumed
	// synchronously.
	BuildDataloader(ds *dataset.Dataset, batchSize, workers int) *dataset.Loader
}

// BackendExporter is an optional capability: plugins able to compile
// their reference model into backend artifacts implement it.
type BackendExporter interface {
	// ExportBackend serializes the reference model behind h into the
	// backend artifact file at path. part carries the sub-graph the
	// artifact covers; a zero Partition means end-to-end.
	ExportBackend(h ModelHandle, part partition.Partition, path string) error
}

// GetTensorFromInput extracts the model-consumable tensor from a
// combined input. Pure accessor: a function of the input alone, with no
// plugin state involved.
func GetTensorFromInput(in *Input) types.Tensor {
	if in == nil {
		return types.Tensor{}
	}
	return in.Tensor
}
