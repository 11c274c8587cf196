package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/legaltrack/pjnsync/internal/config"
	"github.com/legaltrack/pjnsync/internal/ledger"
	"github.com/legaltrack/pjnsync/internal/manager"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/probe"
	"github.com/legaltrack/pjnsync/internal/supervisor"
)

var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Run the worker manager",
	Long: `Run the manager loop: poll the pending-work backlog, scale worker
processes per kind within their schedules, restart stuck instances and
publish a status snapshot to the store.`,
	RunE: runManager,
}

func init() {
	rootCmd.AddCommand(managerCmd)
}

func runManager(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log.With("component", "manager")

	binary := rt.cfg.Manager.WorkerBinary
	if binary == "" {
		binary, err = os.Executable()
		if err != nil {
			return fmt.Errorf("failed to resolve worker binary: %w", err)
		}
	}
	stateDir := rt.cfg.Manager.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(rt.cfg.Paths.ResolveDataDir(), "run")
	}
	sup, err := supervisor.NewExec(binary, stateDir, log)
	if err != nil {
		return err
	}

	pr := probe.NewStoreProbe(rt.store, probe.Thresholds{
		UpdateThresholdHours:      rt.cfg.Sync.UpdateThresholdHours,
		MinTimeBetweenRunsMinutes: rt.cfg.Sync.MinTimeBetweenRunsMinutes,
		MaxResumeAttempts:         rt.cfg.Sync.MaxResumeAttempts,
	})
	led := ledger.New(rt.store, rt.store,
		ledger.WithMaxResumeAttempts(rt.cfg.Sync.MaxResumeAttempts))

	mgr := manager.New(rt.store, pr, sup, led, log, manager.Options{
		PollInterval:  rt.cfg.Manager.PollInterval(),
		RunsToKeep:    rt.cfg.Manager.RunsToKeep,
		PruneInterval: time.Duration(rt.cfg.Manager.PruneIntervalMinutes) * time.Minute,
	})

	// The store's worker_configs collection is authoritative once written;
	// the file config only seeds a fresh deployment.
	if err := mgr.Seed(ctx, []*model.WorkerKindConfig{
		rt.cfg.Workers.Sync.ToWorkerKindConfig(model.KindSync),
		rt.cfg.Workers.CausaCreation.ToWorkerKindConfig(model.KindCausaCreation),
	}); err != nil {
		return err
	}

	if path := config.ConfigFile(); path != "" {
		go func() {
			err := config.Watch(ctx, path, log, func(*config.Config) {
				mgr.BumpConfigVersion()
			})
			if err != nil {
				log.Warn("config watcher stopped", "error", err.Error())
			}
		}()
	}

	log.Info("manager starting", "poll_interval", rt.cfg.Manager.PollInterval().String())
	if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("manager stopped")
	return nil
}
