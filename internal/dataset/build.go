package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/tongda/mmdeploy/internal/common/fsutil"
	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/pkg/types"
)

// manifest is the on-disk dataset description: one JSON document per
// split, listing samples with image paths relative to the manifest.
type manifest struct {
	Name    string           `json:"name"`
	Samples []manifestSample `json:"samples"`
}

type manifestSample struct {
	ID     string          `json:"id"`
	Image  string          `json:"image"`
	Height int             `json:"height,omitempty"`
	Width  int             `json:"width,omitempty"`
	Truth  json.RawMessage `json:"truth,omitempty"`
}

// Build loads the dataset for a split. The manifest path comes from the
// model config under data.<split>.manifest; the config schema beyond
// that key belongs to the codebase plugins.
func Build(cfg config.ModelConfig, split string) (*Dataset, error) {
	path := cfg.String("data."+split+".manifest", "")
	if path == "" {
		return nil, fmt.Errorf("model config has no data.%s.manifest", split)
	}
	return Load(path)
}

// Load reads a dataset manifest file. Relative image paths are resolved
// against the manifest's directory.
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	root := filepath.Dir(path)
	ds := &Dataset{Name: m.Name}
	for i, ms := range m.Samples {
		id := ms.ID
		if id == "" {
			id = fmt.Sprintf("%s#%d", m.Name, i)
		}
		img := ms.Image
		if img != "" && !filepath.IsAbs(img) {
			img = filepath.Join(root, img)
		}
		if img != "" && !fsutil.PathExists(img) {
			return nil, fmt.Errorf("sample %s: image %s does not exist", id, img)
		}
		ds.Samples = append(ds.Samples, Sample{
			ID:     id,
			Image:  types.ImageFromFile(img),
			Height: ms.Height,
			Width:  ms.Width,
			Truth:  ms.Truth,
		})
	}
	return ds, nil
}
