// Package server glues the codebase registry, the artifact inventory,
// and the run tracker together behind the HTTP API's Service interface.
package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/artifact"
	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/common/filewatch"
	"github.com/tongda/mmdeploy/internal/progress"
	"github.com/tongda/mmdeploy/pkg/types"
)

// Core implements httpapi.Service.
type Core struct {
	log         zerolog.Logger
	artifactDir string
	tracker     *progress.Tracker

	mu        sync.RWMutex
	ready     bool
	artifacts []types.ArtifactInfo
	runCfg    *RunConfig
	runningID string
}

// New builds a Core over artifactDir. Call Refresh (or Watch) before
// serving so the first /status response reflects the directory.
func New(log zerolog.Logger, artifactDir string) *Core {
	return &Core{
		log:         log,
		artifactDir: artifactDir,
		tracker:     &progress.Tracker{},
	}
}

// Refresh rescans the artifact directory and replaces the inventory.
func (c *Core) Refresh() error {
	arts, err := artifact.ScanDir(c.artifactDir)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.artifacts = arts
	c.ready = true
	c.mu.Unlock()
	c.log.Debug().Int("artifacts", len(arts)).Str("dir", c.artifactDir).Msg("artifact inventory refreshed")
	return nil
}

// Watch blocks, rescanning the artifact directory whenever it changes,
// until ctx is cancelled. A failed rescan is logged and retried on the
// next event rather than tearing the watcher down.
func (c *Core) Watch(ctx context.Context) error {
	if err := c.Refresh(); err != nil {
		return err
	}
	return filewatch.Watch(ctx, c.artifactDir, func() {
		if err := c.Refresh(); err != nil {
			c.log.Warn().Err(err).Msg("artifact rescan failed")
		}
	})
}

// Codebases lists the registered codebase plugins.
func (c *Core) Codebases() []types.CodebaseInfo {
	names := codebase.Names()
	out := make([]types.CodebaseInfo, 0, len(names))
	for _, n := range names {
		out = append(out, types.CodebaseInfo{Name: n})
	}
	return out
}

// Status reports the current run and the artifact inventory.
func (c *Core) Status() types.StatusResponse {
	state, run := c.tracker.Snapshot()
	c.mu.RLock()
	arts := make([]types.ArtifactInfo, len(c.artifacts))
	copy(arts, c.artifacts)
	c.mu.RUnlock()
	return types.StatusResponse{State: state, Run: run, Artifacts: arts}
}

// Ready reports whether the first inventory scan has completed.
func (c *Core) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}
