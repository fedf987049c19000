// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/jontk/cgsim-dispatcher/internal/simkernel"
	"github.com/jontk/cgsim-dispatcher/pkg/config"
	dispatcherrors "github.com/jontk/cgsim-dispatcher/pkg/errors"
	"github.com/jontk/cgsim-dispatcher/pkg/executor"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/logging"
	"github.com/jontk/cgsim-dispatcher/pkg/metrics"
	"github.com/jontk/cgsim-dispatcher/pkg/model"
	"github.com/jontk/cgsim-dispatcher/pkg/registry"
	"github.com/jontk/cgsim-dispatcher/pkg/topology"
	"github.com/jontk/cgsim-dispatcher/pkg/watch"
	"github.com/jontk/cgsim-dispatcher/pkg/workload"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = ""
	Commit    = ""

	// Global flags
	configPath string
	debug      bool
	logJSON    bool
	progress   time.Duration

	rootCmd = &cobra.Command{
		Use:     "cgsim-dispatcher",
		Short:   "Discrete-event compute-grid dispatch simulator",
		Long:    `Simulates dispatching a workload of compute jobs across a geographically distributed grid under a pluggable placement policy.`,
		Version: Version,
	}
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the run configuration JSON document")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON instead of text")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(policiesCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(docsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cgsim-dispatcher version %s\n", Version)
		if BuildTime != "" {
			fmt.Printf("Build Time: %s\n", BuildTime)
		}
		if Commit != "" {
			fmt.Printf("Commit:     %s\n", Commit)
		}
	},
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List registered dispatch policies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run a full simulation: load the platform and workload named in the
configuration document, place every job under the configured dispatch
policy, and write the run report to the configured output path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("a configuration document is required (use --config)")
		}
		return runSimulation(cmd.Context(), configPath)
	},
}

func init() {
	runCmd.Flags().DurationVar(&progress, "progress", 0, "Log aggregate progress at this interval (0 disables)")
}

func newLogger() logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Version = Version
	if debug {
		cfg.Level = slog.LevelDebug
	}
	if logJSON {
		cfg.Format = logging.FormatJSON
	}
	return logging.NewLogger(cfg)
}

func runSimulation(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return dispatcherrors.NewDispatchErrorWithCause(
			dispatcherrors.ErrorCodeInvalidConfiguration, "load configuration", err)
	}

	runID := uuid.NewString()
	logger := newLogger().With("run_id", runID, "grid", cfg.GridName)

	loader := topology.NewLoader(cfg.SitesInformation, cfg.SitesConnectionInformation, cfg.Sites, logger)
	grid, fileReg, links, err := loader.BuildGrid(cfg.GridName)
	if err != nil {
		return fmt.Errorf("load platform: %w", err)
	}

	source := workload.NewCSVSource(cfg.InputJobCSV, logger).
		WithReferenceGflops(referenceGflops(grid))
	workloadFn := func(n int) []*job.Job {
		jobs, err := source.GetJobs(int64(n))
		if err != nil {
			logger.Error("workload ingestion failed", "error", err)
			return nil
		}
		return jobs
	}

	dispatcher, err := registry.New(cfg.DispatcherPlugin, registry.Options{
		PolicyServerAddr:   cfg.PolicyServerAddress,
		PolicyDecisionForm: cfg.PolicyDecisionForm,
		Workload:           workloadFn,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("resolve dispatch policy: %w", err)
	}

	collector := metrics.NewInMemoryCollector()
	exec, err := executor.New(executor.Options{
		Kernel:     simkernel.New(),
		Grid:       grid,
		Registry:   fileReg,
		Links:      links,
		Dispatcher: dispatcher,
		Workload:   source,
		MaxJobs:    cfg.NumOfJobs,
		RunID:      runID,
		Logger:     logger,
		Metrics:    collector,
	})
	if err != nil {
		return err
	}

	if progress > 0 {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		events, err := watch.NewProgressPoller(collector).WithPollInterval(progress).Watch(watchCtx)
		if err == nil {
			go func() {
				for ev := range events {
					logger.Info("progress",
						"assigned", ev.Stats.TotalAssigned, "pending", ev.Stats.TotalPending,
						"failed", ev.Stats.TotalFailed, "finished", ev.Stats.TotalFinished)
				}
			}()
		}
	}

	report, err := exec.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulation run: %w", err)
	}

	out := outputPath(cfg.OutputDB, runID)
	if err := writeReport(out, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("report written", "path", out)
	return nil
}

// referenceGflops picks the per-core rating jobs' flops estimates are
// derived from at ingestion: the best rating any placement site offers, a
// stable choice independent of where each job eventually lands.
func referenceGflops(grid *model.Grid) float64 {
	best := 0.0
	for _, siteID := range grid.SortedSiteIDs() {
		if site := grid.Site(siteID); site != nil && site.GflopsPerCoreHint > best {
			best = site.GflopsPerCoreHint
		}
	}
	return best
}

// outputPath avoids clobbering a previous run's report: when the
// configured path already exists, the run id is folded into the filename.
func outputPath(configured, runID string) string {
	if _, err := os.Stat(configured); os.IsNotExist(err) {
		return configured
	}
	ext := filepath.Ext(configured)
	base := strings.TrimSuffix(configured, ext)
	return fmt.Sprintf("%s-%s%s", base, runID, ext)
}

func writeReport(path string, report *executor.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
