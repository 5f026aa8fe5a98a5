package dataset

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoaderBatching(t *testing.T) {
	d := sampleSet([][2]int{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}})
	l := NewLoader(d, 2, 1)
	if l.Batches() != 3 {
		t.Fatalf("expected 3 batches got %d", l.Batches())
	}
	var seen []string
	for {
		b, ok := l.Next()
		if !ok {
			break
		}
		if len(b.Samples) == 0 || len(b.Samples) > 2 {
			t.Fatalf("batch %d has %d samples", b.Index, len(b.Samples))
		}
		for _, s := range b.Samples {
			seen = append(seen, s.ID)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 samples across batches got %d", len(seen))
	}
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		if seen[i] != id {
			t.Fatalf("expected dataset order preserved, got %v", seen)
		}
	}
}

func TestLoaderDefensiveBatchSize(t *testing.T) {
	d := sampleSet([][2]int{{1, 1}, {2, 2}})
	l := NewLoader(d, 0, 0)
	if l.Batches() != 2 {
		t.Fatalf("expected batch size clamped to 1, got %d batches", l.Batches())
	}
	n := 0
	for {
		if _, ok := l.Next(); !ok {
			break
		}
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 batches consumed got %d", n)
	}
}

func TestLoaderCloseReleasesProducer(t *testing.T) {
	shapes := make([][2]int, 100)
	for i := range shapes {
		shapes[i] = [2]int{i + 1, i + 1}
	}
	d := sampleSet(shapes)

	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		l := NewLoader(d, 1, 0)
		if _, ok := l.Next(); !ok {
			t.Fatalf("expected a first batch")
		}
		l.Close()
		l.Close() // idempotent
	}
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Fatalf("abandoned loaders leaked producers: before=%d after=%d", before, after)
	}
}

func TestLoaderCloseThenNext(t *testing.T) {
	d := sampleSet([][2]int{{1, 1}, {2, 2}, {3, 3}})
	l := NewLoader(d, 1, 0)
	l.Close()
	// the channel drains whatever was already produced, then ends
	for i := 0; i < 4; i++ {
		if _, ok := l.Next(); !ok {
			return
		}
	}
	t.Fatalf("expected Next to stop yielding after Close")
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	body := `{
  "name": "mini",
  "samples": [
    {"id": "s0", "image": "imgs/s0.png", "height": 300, "width": 300, "truth": {"label": 1}},
    {"image": "imgs/s1.png"}
  ]
}`
	p := filepath.Join(dir, "val.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "imgs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"s0.png", "s1.png"} {
		if err := os.WriteFile(filepath.Join(dir, "imgs", name), nil, 0o644); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	ds, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Name != "mini" || ds.Len() != 2 {
		t.Fatalf("unexpected dataset: name=%q len=%d", ds.Name, ds.Len())
	}
	if got, want := ds.Samples[0].Image.Path, filepath.Join(dir, "imgs", "s0.png"); got != want {
		t.Fatalf("expected resolved image path %q got %q", want, got)
	}
	if !ds.Samples[0].HasShape() {
		t.Fatalf("expected s0 to carry shape metadata")
	}
	if ds.Samples[1].HasShape() {
		t.Fatalf("expected second sample to lack shape metadata")
	}
	if ds.Samples[1].ID == "" {
		t.Fatalf("expected a generated id for unnamed sample")
	}
	if CanSort(ds) {
		t.Fatalf("dataset with one shapeless sample must not be sortable")
	}
}

func TestLoadManifestMissingImage(t *testing.T) {
	dir := t.TempDir()
	body := `{"name": "mini", "samples": [{"id": "s0", "image": "gone.png"}]}`
	p := filepath.Join(dir, "val.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for missing image file")
	}
}

func TestLoadMissingManifest(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}
