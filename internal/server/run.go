package server

import (
	"errors"
	"fmt"

	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/config"
)

// runActiveError signals a StartRun while another run is in flight, for
// 409 mapping.
type runActiveError struct{ runID string }

func (e runActiveError) Error() string { return "a run is already active: " + e.runID }

// ErrRunActive returns the error reported while runID is in flight.
func ErrRunActive(runID string) error { return runActiveError{runID: runID} }

// IsRunActive reports whether err indicates a concurrent run attempt.
func IsRunActive(err error) bool {
	var t runActiveError
	return errors.As(err, &t)
}

// runNotConfiguredError signals StartRun on a server that was given no
// evaluation to execute.
type runNotConfiguredError struct{}

func (e runNotConfiguredError) Error() string { return "no evaluation run configured" }

// ErrRunNotConfigured returns the error reported when the server
// carries no run configuration.
func ErrRunNotConfigured() error { return runNotConfiguredError{} }

// IsRunNotConfigured reports whether err indicates a missing run
// configuration.
func IsRunNotConfigured(err error) bool {
	var t runNotConfiguredError
	return errors.As(err, &t)
}

// RunConfig describes the evaluation the server executes on demand.
// Configs are re-read on every run so edits between runs take effect.
type RunConfig struct {
	DeployCfgPath string
	ModelCfgPath  string
	// Backend artifact files; empty runs the reference model.
	ModelFiles []string
	// Reference checkpoint, used when ModelFiles is empty.
	Checkpoint string
	// Dataset split; empty means "test".
	Split      string
	Metrics    []string
	OutputPath string
	BatchSize  int
	Workers    int
	SortData   bool
}

// SetRunConfig installs the evaluation the server may execute.
func (c *Core) SetRunConfig(cfg RunConfig) {
	c.mu.Lock()
	c.runCfg = &cfg
	c.mu.Unlock()
}

// StartRun kicks off one evaluation run in the background and returns
// its run id. At most one run is in flight at a time; progress is
// visible through Status and the run metrics.
func (c *Core) StartRun() (string, error) {
	c.mu.RLock()
	cfg := c.runCfg
	running := c.runningID
	c.mu.RUnlock()
	if cfg == nil {
		return "", runNotConfiguredError{}
	}
	if running != "" {
		return "", runActiveError{runID: running}
	}

	deployCfg, err := config.LoadDeploy(cfg.DeployCfgPath)
	if err != nil {
		return "", fmt.Errorf("load deploy config: %w", err)
	}
	modelCfg, err := config.LoadModel(cfg.ModelCfgPath)
	if err != nil {
		return "", fmt.Errorf("load model config: %w", err)
	}
	t, err := codebase.NewTask(modelCfg, deployCfg, "", c.log)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.runningID != "" {
		running := c.runningID
		c.mu.Unlock()
		return "", runActiveError{runID: running}
	}
	c.runningID = t.RunID
	c.mu.Unlock()

	c.tracker.Start(t.RunID, t.Codebase().Name())
	go c.executeRun(t, *cfg)
	return t.RunID, nil
}

func (c *Core) executeRun(t *codebase.Task, cfg RunConfig) {
	err := c.runEvaluation(t, cfg)
	// free the run slot before the tracker settles so a caller that
	// observes the final state can immediately start the next run
	c.mu.Lock()
	c.runningID = ""
	c.mu.Unlock()
	if err != nil {
		c.log.Error().Err(err).Str("run_id", t.RunID).Msg("evaluation run failed")
		c.tracker.Fail(err)
		return
	}
	c.tracker.Finish()
	c.log.Info().Str("run_id", t.RunID).Msg("evaluation run finished")
	if err := c.Refresh(); err != nil {
		c.log.Warn().Err(err).Msg("artifact rescan after run failed")
	}
}

func (c *Core) runEvaluation(t *codebase.Task, cfg RunConfig) error {
	var (
		model codebase.ModelHandle
		err   error
	)
	if len(cfg.ModelFiles) > 0 {
		model, err = t.InitBackendModel(cfg.ModelFiles)
	} else {
		model, err = t.InitReferenceModel(cfg.Checkpoint, nil)
	}
	if err != nil {
		return err
	}
	defer model.Close()

	split := cfg.Split
	if split == "" {
		split = "test"
	}
	ds, err := t.BuildDataset(split, cfg.SortData)
	if err != nil {
		return err
	}
	loader := t.BuildDataloader(ds, cfg.BatchSize, cfg.Workers)

	c.tracker.Stage("inference")
	outputs, err := t.SingleRunTest(model, loader, codebase.RunOptions{
		OnProgress: c.tracker.Step,
	})
	if err != nil {
		return err
	}

	c.tracker.Stage("evaluate")
	return t.EvaluateOutputs(outputs, ds, codebase.EvalOptions{
		Metrics:    cfg.Metrics,
		OutputPath: cfg.OutputPath,
	})
}
