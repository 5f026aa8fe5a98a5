package exporter

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/artifact"
	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/codebases"
	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/partition"
)

func newDetectionTask(t *testing.T, part config.PartitionConfig) *codebase.Task {
	t.Helper()
	codebases.Load(zerolog.Nop())
	modelCfg := config.ModelConfig{Name: "det-toy", Raw: map[string]any{
		"head": map[string]any{"num_classes": 2, "grid": 2},
	}}
	deployCfg := config.DeployConfig{Codebase: "detection", Partition: part}
	task, err := codebase.NewTask(modelCfg, deployCfg, "cpu", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	return task
}

func TestExportEndToEnd(t *testing.T) {
	task := newDetectionTask(t, config.PartitionConfig{})
	dir := t.TempDir()
	paths, err := Export(task, "", dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected one artifact got %v", paths)
	}
	h, _, err := artifact.Read(paths[0])
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if h.Codebase != "detection" || h.Partition != "model" {
		t.Fatalf("unexpected header %+v", h)
	}
}

func TestExportTwoStageWritesBothPartitions(t *testing.T) {
	task := newDetectionTask(t, config.PartitionConfig{Enabled: true, Type: "two_stage"})
	dir := t.TempDir()
	paths, err := Export(task, "", dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected two artifacts got %v", paths)
	}
	if filepath.Base(paths[0]) != "two_stage_part0"+artifact.Ext {
		t.Fatalf("unexpected first artifact %s", paths[0])
	}
	for _, p := range paths {
		if _, _, err := artifact.Read(p); err != nil {
			t.Fatalf("artifact %s unreadable: %v", p, err)
		}
	}
}

func TestExportUnknownPartitionTypeFailsFast(t *testing.T) {
	task := newDetectionTask(t, config.PartitionConfig{Enabled: true, Type: "sixteen_stage"})
	_, err := Export(task, "", t.TempDir())
	if !partition.IsUnknownPartitionType(err) {
		t.Fatalf("expected unknown partition type, got %v", err)
	}
}
