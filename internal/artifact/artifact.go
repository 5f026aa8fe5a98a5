// Package artifact reads and writes backend model artifacts. The
// container is deliberately dumb: a magic header, a small JSON
// descriptor, and an opaque payload owned by the codebase plugin that
// produced it.
package artifact

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tongda/mmdeploy/internal/common/fsutil"
	"github.com/tongda/mmdeploy/pkg/types"
)

// Ext is the file extension backend artifacts are written with.
const Ext = ".mmdgo"

var magic = []byte("MMDGO\x01")

// Header describes the artifact's provenance.
type Header struct {
	// Codebase that produced the artifact.
	Codebase string `json:"codebase"`
	// Model config name the artifact was exported from.
	Model string `json:"model,omitempty"`
	// Partition the artifact covers; empty for end-to-end exports.
	Partition string `json:"partition,omitempty"`
}

// Write serializes an artifact to path, creating parent directories.
func Write(path string, h Header, payload []byte) error {
	hdr, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode artifact header: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	buf := make([]byte, 0, len(magic)+4+len(hdr)+len(payload))
	buf = append(buf, magic...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(hdr)))
	buf = append(buf, hdr...)
	buf = append(buf, payload...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Read parses an artifact file and returns its header and payload.
func Read(path string) (Header, []byte, error) {
	var h Header
	b, err := os.ReadFile(path)
	if err != nil {
		return h, nil, err
	}
	if len(b) < len(magic)+4 || string(b[:len(magic)]) != string(magic) {
		return h, nil, fmt.Errorf("not a backend artifact: %s", path)
	}
	b = b[len(magic):]
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if int(n) > len(b) {
		return h, nil, fmt.Errorf("truncated artifact header: %s", path)
	}
	if err := json.Unmarshal(b[:n], &h); err != nil {
		return h, nil, fmt.Errorf("decode artifact header: %w", err)
	}
	return h, b[n:], nil
}

// ScanDir lists the artifacts in a directory. The ID is the file name
// (including extension); files that do not parse are skipped so a
// half-written export never breaks the listing.
func ScanDir(dir string) ([]types.ArtifactInfo, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.ArtifactInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), Ext) {
			continue
		}
		p := filepath.Join(abs, e.Name())
		info := types.ArtifactInfo{ID: e.Name(), Path: p}
		if fi, err := e.Info(); err == nil {
			info.SizeBytes = fi.Size()
		}
		if h, _, err := Read(p); err == nil {
			info.Codebase = h.Codebase
			info.Partition = h.Partition
		}
		out = append(out, info)
	}
	return out, nil
}
