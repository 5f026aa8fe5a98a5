// Package exporter turns a deployment task's reference model into the
// backend artifacts described by its partition scheme. The exporter
// owns only the orchestration; serialization belongs to the plugin.
package exporter

import (
	"fmt"
	"path/filepath"

	"github.com/tongda/mmdeploy/internal/artifact"
	"github.com/tongda/mmdeploy/internal/codebase"
)

// Export loads the reference model (optionally from checkpoint) and
// writes one artifact per partition into workDir. The partition scheme
// comes from the deploy config; a disabled partition section exports a
// single end-to-end artifact. Returns the written paths in partition
// order.
func Export(t *codebase.Task, checkpoint, workDir string) ([]string, error) {
	exp, ok := t.Codebase().(codebase.BackendExporter)
	if !ok {
		return nil, fmt.Errorf("codebase %s cannot export backend artifacts", t.Codebase().Name())
	}
	partitionType := "end2end"
	if t.DeployCfg.Partition.Enabled && t.DeployCfg.Partition.Type != "" {
		partitionType = t.DeployCfg.Partition.Type
	}
	// resolve the scheme before touching the model so a bad partition
	// type fails fast
	spec, err := t.GetPartitionCfg(partitionType)
	if err != nil {
		return nil, err
	}

	ref, err := t.InitReferenceModel(checkpoint, nil)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	var paths []string
	for _, part := range spec.Partitions {
		name := part.SaveFile
		if name == "" {
			name = part.Name + artifact.Ext
		}
		out := filepath.Join(workDir, name)
		if err := exp.ExportBackend(ref, part, out); err != nil {
			return nil, fmt.Errorf("export partition %s: %w", part.Name, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}
