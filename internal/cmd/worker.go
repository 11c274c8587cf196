package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/legaltrack/pjnsync/internal/ledger"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/portal"
	"github.com/legaltrack/pjnsync/internal/reconcile"
	"github.com/legaltrack/pjnsync/internal/supervisor"
	"github.com/legaltrack/pjnsync/internal/worker"
)

var (
	workerKind       string
	workerInstanceID string
	workerHeartbeat  string
	workerPortal     string
	workerOnce       bool
)

// newPortalClient builds the portal automation client. The scraping stack is
// maintained out of tree; builds without it can still exercise the full
// pipeline against the scripted fake.
var newPortalClient = func(driver string) (portal.Client, error) {
	switch driver {
	case "fake":
		return portal.NewFake(), nil
	default:
		return nil, fmt.Errorf("portal driver %q not available in this build", driver)
	}
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a worker instance",
	Long: `Run one worker instance. The manager spawns these; each loops over
"pick the highest-priority eligible credential, sync it" invocations and
touches its heartbeat file between cases.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerKind, "kind", string(model.KindSync), "worker kind (sync or causa_creation)")
	workerCmd.Flags().StringVar(&workerInstanceID, "instance-id", "", "instance id assigned by the manager")
	workerCmd.Flags().StringVar(&workerHeartbeat, "heartbeat", "", "heartbeat file path assigned by the manager")
	workerCmd.Flags().StringVar(&workerPortal, "portal", "pjn", "portal driver")
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "run a single invocation and exit")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	kind := model.WorkerKind(workerKind)
	if kind != model.KindSync && kind != model.KindCausaCreation {
		return fmt.Errorf("unknown worker kind %q", workerKind)
	}
	if workerInstanceID == "" {
		workerInstanceID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log.WithWorker(string(kind), workerInstanceID)

	var invoke func(context.Context) (bool, error)
	workDelay := rt.cfg.Sync.DelayBetweenCredentials
	switch kind {
	case model.KindSync:
		client, err := newPortalClient(workerPortal)
		if err != nil {
			return err
		}
		rec := reconcile.New(rt.store, log)
		led := ledger.New(rt.store, rt.store,
			ledger.WithMaxResumeAttempts(rt.cfg.Sync.MaxResumeAttempts))
		invoke = worker.New(rt.store, client, rec, led, log, rt.cfg.Sync).RunOnce
	case model.KindCausaCreation:
		invoke = worker.NewCreator(rt.store, log).RunOnce
		workDelay = rt.cfg.Sync.DelayBetweenCausas
	}

	if workerOnce {
		_, err := invoke(ctx)
		return err
	}

	// The supervisor passes the exact heartbeat path it will stat; deriving
	// it locally is the fallback for hand-started workers.
	heartbeat := workerHeartbeat
	if heartbeat == "" {
		stateDir := rt.cfg.Manager.StateDir
		if stateDir == "" {
			stateDir = filepath.Join(rt.cfg.Paths.ResolveDataDir(), "run")
		}
		heartbeat = supervisor.HeartbeatPath(stateDir, kind, workerInstanceID)
	}
	loop := &worker.Loop{
		Invoke:        invoke,
		Log:           log,
		HeartbeatPath: heartbeat,
		IdleInterval:  30 * time.Second,
		WorkDelay:     workDelay,
	}

	log.Info("worker starting")
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("worker stopped")
	return nil
}
