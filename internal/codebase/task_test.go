package codebase

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/dataset"
	"github.com/tongda/mmdeploy/pkg/types"
)

func newTestTask(t *testing.T, f *fakeCodebase) *Task {
	t.Helper()
	name := registerFake(t, f)
	task, err := NewTask(config.ModelConfig{Name: "m"}, config.DeployConfig{Codebase: name}, "cpu", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	return task
}

func TestNewTaskResolvesBindingOnce(t *testing.T) {
	f := &fakeCodebase{}
	task := newTestTask(t, f)
	if task.Codebase() != Codebase(f) {
		t.Fatalf("task bound to wrong codebase")
	}
	if task.RunID == "" {
		t.Fatalf("expected a run id")
	}
	if task.Device != "cpu" {
		t.Fatalf("expected device cpu got %q", task.Device)
	}
}

func TestNewTaskUnknownCodebase(t *testing.T) {
	_, err := NewTask(config.ModelConfig{}, config.DeployConfig{Codebase: "nope"}, "", zerolog.Nop())
	if !IsUnknownCodebase(err) {
		t.Fatalf("expected IsUnknownCodebase, got %v", err)
	}
}

func TestNewTaskDeviceFallsBackToDeployConfig(t *testing.T) {
	f := &fakeCodebase{}
	name := registerFake(t, f)
	task, err := NewTask(config.ModelConfig{}, config.DeployConfig{Codebase: name, Device: "cuda:0"}, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if task.Device != "cuda:0" {
		t.Fatalf("expected device from deploy config, got %q", task.Device)
	}
}

func TestBuildDatasetSortsWhenPossible(t *testing.T) {
	f := &fakeCodebase{ds: &dataset.Dataset{Name: "d", Samples: []dataset.Sample{
		{ID: "big", Height: 480, Width: 640},
		{ID: "small", Height: 300, Width: 300},
	}}}
	task := newTestTask(t, f)
	ds, err := task.BuildDataset("val", true)
	if err != nil {
		t.Fatalf("BuildDataset: %v", err)
	}
	if ds.Samples[0].ID != "small" {
		t.Fatalf("expected shape-sorted dataset, got %q first", ds.Samples[0].ID)
	}
}

func TestBuildDatasetUnsortableIsNotAnError(t *testing.T) {
	f := &fakeCodebase{ds: &dataset.Dataset{Name: "d", Samples: []dataset.Sample{
		{ID: "x", Height: 480, Width: 640},
		{ID: "y"}, // no shape metadata
	}}}
	task := newTestTask(t, f)
	ds, err := task.BuildDataset("val", true)
	if err != nil {
		t.Fatalf("expected unsortable dataset to degrade, got %v", err)
	}
	if ds.Samples[0].ID != "x" || ds.Samples[1].ID != "y" {
		t.Fatalf("expected original order preserved, got %+v", ds.Samples)
	}
}

func TestSingleRunTestAlignsPredictions(t *testing.T) {
	f := &fakeCodebase{ds: &dataset.Dataset{Samples: []dataset.Sample{
		{ID: "s0", Image: types.ImageFromFile("s0.png")},
		{ID: "s1", Image: types.ImageFromFile("s1.png")},
		{ID: "s2", Image: types.ImageFromFile("s2.png")},
	}}}
	task := newTestTask(t, f)
	ds, _ := task.BuildDataset("val", false)
	var progress []int
	preds, err := task.SingleRunTest(fakeHandle{kind: KindBackend}, task.BuildDataloader(ds, 2, 0), RunOptions{
		OnProgress: func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("SingleRunTest: %v", err)
	}
	if len(preds) != 3 {
		t.Fatalf("expected 3 predictions got %d", len(preds))
	}
	if preds[0] != "s0.png" || preds[2] != "s2.png" {
		t.Fatalf("predictions misaligned: %v", preds)
	}
	if len(progress) != 2 || progress[1] != 2 {
		t.Fatalf("expected progress callbacks per batch, got %v", progress)
	}
}

func TestSingleRunTestSkipsUndecodableSamples(t *testing.T) {
	f := &fakeCodebase{ds: &dataset.Dataset{Samples: []dataset.Sample{
		{ID: "good", Image: types.ImageFromFile("good.png")},
		{ID: "bad", Image: types.ImageFromFile("bad.bin")},
	}}}
	f.createInput = func(imgs []types.ImageSource) (*Input, error) {
		in := &Input{}
		for _, img := range imgs {
			if strings.HasSuffix(img.Path, ".bin") {
				return nil, ErrUnsupportedInput(img.Name(), errors.New("unknown encoding"))
			}
			in.Metas = append(in.Metas, Meta{SampleID: img.Name()})
		}
		in.Tensor = types.Tensor{Shape: []int{len(in.Metas), 1}, Data: make([]float32, len(in.Metas))}
		return in, nil
	}
	task := newTestTask(t, f)
	ds, _ := task.BuildDataset("val", false)
	preds, err := task.SingleRunTest(fakeHandle{kind: KindReference}, task.BuildDataloader(ds, 2, 0), RunOptions{})
	if err != nil {
		t.Fatalf("expected partial results, got %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("expected 2 slots got %d", len(preds))
	}
	if preds[0] != "good.png" {
		t.Fatalf("expected good sample prediction, got %v", preds[0])
	}
	if preds[1] != nil {
		t.Fatalf("expected nil placeholder for skipped sample, got %v", preds[1])
	}
}

func TestSingleRunTestPropagatesInferenceErrors(t *testing.T) {
	f := &fakeCodebase{ds: &dataset.Dataset{Samples: []dataset.Sample{{ID: "s0"}}}}
	f.infer = func(_ *Input) (Predictions, error) { return nil, errors.New("boom") }
	task := newTestTask(t, f)
	ds, _ := task.BuildDataset("val", false)
	if _, err := task.SingleRunTest(fakeHandle{}, task.BuildDataloader(ds, 1, 0), RunOptions{}); err == nil {
		t.Fatalf("expected inference error to propagate")
	}
}

func TestEvaluateOutputsUnsupportedMetric(t *testing.T) {
	f := &fakeCodebase{}
	task := newTestTask(t, f)
	err := task.EvaluateOutputs(Predictions{}, &dataset.Dataset{}, EvalOptions{Metrics: []string{"nope"}})
	if !IsUnsupportedMetric(err) {
		t.Fatalf("expected IsUnsupportedMetric, got %v", err)
	}
}

func TestGetTensorFromInputIsPureAccessor(t *testing.T) {
	if got := GetTensorFromInput(nil); !got.Empty() {
		t.Fatalf("expected empty tensor for nil input")
	}
	in := &Input{Tensor: types.Tensor{Shape: []int{1, 2}, Data: []float32{1, 2}}}
	got := GetTensorFromInput(in)
	if got.Numel() != 2 || got.Data[1] != 2 {
		t.Fatalf("unexpected tensor: %+v", got)
	}
}
