package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadDeployYAML(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "deploy.yaml", `
codebase: detection
backend: mmdgo
device: cpu
input_shape: [320, 320]
partition:
  enabled: true
  type: two_stage
score_threshold: 0.3
`)
	cfg, err := LoadDeploy(p)
	if err != nil {
		t.Fatalf("LoadDeploy: %v", err)
	}
	if cfg.Codebase != "detection" {
		t.Fatalf("expected codebase detection got %q", cfg.Codebase)
	}
	if !cfg.Partition.Enabled || cfg.Partition.Type != "two_stage" {
		t.Fatalf("partition envelope not decoded: %+v", cfg.Partition)
	}
	if len(cfg.InputShape) != 2 || cfg.InputShape[0] != 320 {
		t.Fatalf("input_shape not decoded: %v", cfg.InputShape)
	}
	// unknown keys survive in Raw
	if got := cfg.String("score_threshold", ""); got != "" {
		t.Fatalf("score_threshold should not be a string, got %q", got)
	}
	if v, ok := rawLookup(cfg.Raw, "score_threshold"); !ok || v == nil {
		t.Fatalf("score_threshold missing from Raw")
	}
}

func TestLoadModelJSONAndTOML(t *testing.T) {
	dir := t.TempDir()
	jp := writeFile(t, dir, "model.json", `{"name":"retina-toy","head":{"num_classes":4}}`)
	cfg, err := LoadModel(jp)
	if err != nil {
		t.Fatalf("LoadModel json: %v", err)
	}
	if cfg.Name != "retina-toy" {
		t.Fatalf("expected name retina-toy got %q", cfg.Name)
	}
	if n := cfg.Int("head.num_classes", 0); n != 4 {
		t.Fatalf("expected num_classes 4 got %d", n)
	}

	tp := writeFile(t, dir, "model.toml", "name = \"cls-toy\"\n\n[head]\nnum_classes = 7\n")
	cfg, err = LoadModel(tp)
	if err != nil {
		t.Fatalf("LoadModel toml: %v", err)
	}
	if n := cfg.Int("head.num_classes", 0); n != 7 {
		t.Fatalf("expected num_classes 7 got %d", n)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "deploy.ini", "codebase=detection")
	if _, err := LoadDeploy(p); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := LoadModel(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestDottedAccessorsDefaults(t *testing.T) {
	cfg := ModelConfig{Raw: map[string]any{"a": map[string]any{"b": "x"}}}
	if got := cfg.String("a.b", "def"); got != "x" {
		t.Fatalf("expected x got %q", got)
	}
	if got := cfg.String("a.missing", "def"); got != "def" {
		t.Fatalf("expected default got %q", got)
	}
	if got := cfg.Int("a.b", 9); got != 9 {
		t.Fatalf("expected default 9 got %d", got)
	}
	if got := cfg.Float("nope", 1.5); got != 1.5 {
		t.Fatalf("expected default 1.5 got %v", got)
	}
}
