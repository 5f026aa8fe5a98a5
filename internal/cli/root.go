// Package cli builds the mmdeploy command tree. The commands own flag
// parsing and wiring only; all behavior lives in the internal packages.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/codebases"
	"github.com/tongda/mmdeploy/internal/config"
	"github.com/tongda/mmdeploy/internal/exporter"
	"github.com/tongda/mmdeploy/internal/httpapi"
	"github.com/tongda/mmdeploy/internal/partition"
	"github.com/tongda/mmdeploy/internal/server"
)

// BuildRootCmd constructs the full command tree. The built-in codebase
// plugins are registered once, before any command runs.
func BuildRootCmd(log zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "mmdeploy",
		Short:         "Export, evaluate, and serve deployed models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "Log level: debug|info|warn|error")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		lvl, _ := cmd.Flags().GetString("log-level")
		if parsed, err := zerolog.ParseLevel(lvl); err == nil {
			zerolog.SetGlobalLevel(parsed)
		}
		codebases.Load(log)
	}

	root.AddCommand(
		newDeployCmd(log),
		newTestCmd(log),
		newPartitionCmd(log),
		newCodebasesCmd(),
		newServeCmd(log),
	)
	return root
}

// loadTask resolves the two config files shared by deploy and test.
func loadTask(deployPath, modelPath, device string, log zerolog.Logger) (*codebase.Task, error) {
	deployCfg, err := config.LoadDeploy(deployPath)
	if err != nil {
		return nil, fmt.Errorf("load deploy config: %w", err)
	}
	modelCfg, err := config.LoadModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model config: %w", err)
	}
	return codebase.NewTask(modelCfg, deployCfg, device, log)
}

func newDeployCmd(log zerolog.Logger) *cobra.Command {
	var (
		deployPath string
		modelPath  string
		checkpoint string
		workDir    string
		device     string
	)
	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   "Export the reference model as backend artifacts",
		Example: "  mmdeploy deploy --deploy-cfg deploy.yaml --model-cfg model.yaml --checkpoint weights.json --work-dir out",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTask(deployPath, modelPath, device, log)
			if err != nil {
				return err
			}
			paths, err := exporter.Export(t, checkpoint, workDir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&deployPath, "deploy-cfg", "", "Deploy config file (yaml/json/toml)")
	cmd.Flags().StringVar(&modelPath, "model-cfg", "", "Model config file")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "Reference model checkpoint; empty uses default weights")
	cmd.Flags().StringVar(&workDir, "work-dir", ".", "Directory artifacts are written to")
	cmd.Flags().StringVar(&device, "device", "", "Device override; empty uses the deploy config")
	_ = cmd.MarkFlagRequired("deploy-cfg")
	_ = cmd.MarkFlagRequired("model-cfg")
	return cmd
}

func newTestCmd(log zerolog.Logger) *cobra.Command {
	var (
		deployPath string
		modelPath  string
		modelFiles []string
		checkpoint string
		device     string
		split      string
		metrics    []string
		outPath    string
		formatOnly bool
		batchSize  int
		workers    int
		showDir    string
		sortData   bool
	)
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run a model over a dataset split and score it",
		Example: "  mmdeploy test --deploy-cfg deploy.yaml --model-cfg model.yaml --model out/end2end.mmdgo --metrics mAP,recall\n" +
			"  mmdeploy test --deploy-cfg deploy.yaml --model-cfg model.yaml --checkpoint weights.json --format-only --out preds.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTask(deployPath, modelPath, device, log)
			if err != nil {
				return err
			}

			var model codebase.ModelHandle
			if len(modelFiles) > 0 {
				model, err = t.InitBackendModel(modelFiles)
			} else {
				model, err = t.InitReferenceModel(checkpoint, nil)
			}
			if err != nil {
				return err
			}
			defer model.Close()

			ds, err := t.BuildDataset(split, sortData)
			if err != nil {
				return err
			}
			loader := t.BuildDataloader(ds, batchSize, workers)

			outputs, err := t.SingleRunTest(model, loader, codebase.RunOptions{
				ShowDir: showDir,
				OnProgress: func(done, total int) {
					log.Info().Int("done", done).Int("total", total).Msg("batch finished")
				},
			})
			if err != nil {
				return err
			}

			return t.EvaluateOutputs(outputs, ds, codebase.EvalOptions{
				Metrics:    metrics,
				OutputPath: outPath,
				FormatOnly: formatOnly,
			})
		},
	}
	cmd.Flags().StringVar(&deployPath, "deploy-cfg", "", "Deploy config file (yaml/json/toml)")
	cmd.Flags().StringVar(&modelPath, "model-cfg", "", "Model config file")
	cmd.Flags().StringSliceVar(&modelFiles, "model", nil, "Backend artifact file(s); omit to run the reference model")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "Reference checkpoint, used when --model is omitted")
	cmd.Flags().StringVar(&device, "device", "", "Device override; empty uses the deploy config")
	cmd.Flags().StringVar(&split, "split", "test", "Dataset split to evaluate")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "Metric names; empty uses the codebase defaults")
	cmd.Flags().StringVar(&outPath, "out", "", "File the scored report or formatted predictions are written to")
	cmd.Flags().BoolVar(&formatOnly, "format-only", false, "Format predictions for submission without scoring")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "Samples per batch")
	cmd.Flags().IntVar(&workers, "workers", 1, "Prefetch depth of the dataloader")
	cmd.Flags().StringVar(&showDir, "show-dir", "", "Directory visualizations are written to")
	cmd.Flags().BoolVar(&sortData, "sort-data", false, "Sort the dataset by image height and width before batching")
	_ = cmd.MarkFlagRequired("deploy-cfg")
	_ = cmd.MarkFlagRequired("model-cfg")
	return cmd
}

func newPartitionCmd(log zerolog.Logger) *cobra.Command {
	var (
		cbName string
		ptype  string
	)
	cmd := &cobra.Command{
		Use:     "partition",
		Short:   "Print a codebase's partition scheme as JSON",
		Example: "  mmdeploy partition --codebase detection --type two_stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := codebase.Resolve(cbName); err != nil {
				return err
			}
			spec, err := partition.Resolve(cbName, ptype)
			if err != nil {
				if types := partition.Types(cbName); len(types) > 0 {
					return fmt.Errorf("%w (known types: %s)", err, strings.Join(types, ", "))
				}
				return err
			}
			b, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&cbName, "codebase", "", "Codebase name")
	cmd.Flags().StringVar(&ptype, "type", "end2end", "Partition type")
	_ = cmd.MarkFlagRequired("codebase")
	return cmd
}

func newCodebasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codebases",
		Short: "List registered codebase plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range codebase.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newServeCmd(log zerolog.Logger) *cobra.Command {
	var (
		addr        string
		artifactDir string
		corsEnabled bool
		corsOrigins []string
		runCfg      server.RunConfig
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API over the artifact directory",
		Example: "  mmdeploy serve --addr :8080 --artifact-dir out\n" +
			"  mmdeploy serve --artifact-dir out --deploy-cfg deploy.yaml --model-cfg model.yaml --model out/end2end.mmdgo",
		RunE: func(cmd *cobra.Command, args []string) error {
			core := server.New(log, artifactDir)
			if err := core.Refresh(); err != nil {
				return fmt.Errorf("scan artifacts: %w", err)
			}
			if runCfg.DeployCfgPath != "" && runCfg.ModelCfgPath != "" {
				core.SetRunConfig(runCfg)
			}

			httpapi.SetLogger(log)
			httpapi.SetCORSOptions(corsEnabled, corsOrigins,
				[]string{http.MethodGet}, []string{"Accept", "Content-Type"})
			srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(core)}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				if err := core.Watch(ctx); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Msg("artifact watcher stopped")
				}
			}()
			go func() {
				log.Info().Str("addr", addr).Str("artifact_dir", artifactDir).Msg("serving status API")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&artifactDir, "artifact-dir", ".", "Directory scanned for backend artifacts")
	cmd.Flags().BoolVar(&corsEnabled, "cors", false, "Enable CORS on the status API")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", []string{"*"}, "Allowed CORS origins")
	cmd.Flags().StringVar(&runCfg.DeployCfgPath, "deploy-cfg", "", "Deploy config for POST /runs; with --model-cfg enables server-driven evaluation")
	cmd.Flags().StringVar(&runCfg.ModelCfgPath, "model-cfg", "", "Model config for POST /runs")
	cmd.Flags().StringSliceVar(&runCfg.ModelFiles, "model", nil, "Backend artifact file(s) evaluated by POST /runs; omit to run the reference model")
	cmd.Flags().StringVar(&runCfg.Checkpoint, "checkpoint", "", "Reference checkpoint, used when --model is omitted")
	cmd.Flags().StringVar(&runCfg.Split, "split", "test", "Dataset split evaluated by POST /runs")
	cmd.Flags().StringSliceVar(&runCfg.Metrics, "metrics", nil, "Metric names; empty uses the codebase defaults")
	cmd.Flags().StringVar(&runCfg.OutputPath, "out", "", "File the scored report is written to")
	cmd.Flags().IntVar(&runCfg.BatchSize, "batch-size", 1, "Samples per batch")
	cmd.Flags().IntVar(&runCfg.Workers, "workers", 1, "Prefetch depth of the dataloader")
	cmd.Flags().BoolVar(&runCfg.SortData, "sort-data", false, "Sort the dataset by image height and width before batching")
	return cmd
}
