// Package worker implements the synchronization worker: one invocation picks
// the highest-priority unit of pending work and processes a single
// credential's cases against the external portal.
//
// Work is prioritized in three phases. Initial sync pulls everything for a
// credential that has never been synced, ignoring recency. Resume picks up
// runs a crashed or aborted worker left behind, continuing only the cases
// the run has not already processed. Regular update handles credentials
// whose linked cases have gone stale.
//
// Mutual exclusion between worker processes rides entirely on the store's
// sync lease: a credential whose lease cannot be acquired is somebody
// else's work.
package worker

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/ledger"
	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/portal"
	"github.com/legaltrack/pjnsync/internal/reconcile"
	"github.com/legaltrack/pjnsync/internal/store"
)

// Config tunes one worker instance.
type Config struct {
	// DelayBetweenCausas is the politeness pause between case fetches.
	DelayBetweenCausas time.Duration `mapstructure:"delay_between_causas"`
	// DelayBetweenCredentials is the pause after finishing a credential.
	DelayBetweenCredentials time.Duration `mapstructure:"delay_between_credentials"`

	// UpdateThresholdHours marks a causa stale for the regular-update phase.
	UpdateThresholdHours int `mapstructure:"update_threshold_hours"`
	// MinTimeBetweenRunsMinutes keeps a credential quiet after a run.
	MinTimeBetweenRunsMinutes int `mapstructure:"min_time_between_runs_minutes"`
	// MaxResumeAttempts bounds the resume phase per run.
	MaxResumeAttempts int `mapstructure:"max_resume_attempts"`

	// WaitForCausaCreation makes the regular-update phase hold off while a
	// causa-creation backlog exists for the credential's user.
	WaitForCausaCreation bool `mapstructure:"wait_for_causa_creation"`
	// MaxWaitMinutes bounds that hold-off before the credential is
	// deferred to the next cycle.
	MaxWaitMinutes int `mapstructure:"max_wait_minutes"`
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() Config {
	return Config{
		DelayBetweenCausas:        2 * time.Second,
		DelayBetweenCredentials:   5 * time.Second,
		UpdateThresholdHours:      24,
		MinTimeBetweenRunsMinutes: 60,
		MaxResumeAttempts:         ledger.DefaultMaxResumeAttempts,
		WaitForCausaCreation:      true,
		MaxWaitMinutes:            10,
	}
}

// Worker processes one unit of synchronization work per invocation.
type Worker struct {
	st     store.Store
	client portal.Client
	rec    *reconcile.Reconciler
	led    *ledger.Ledger
	log    *logging.Logger
	cfg    Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithSleeper replaces the politeness-delay sleeper, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Worker) { w.sleep = sleep }
}

// New creates a Worker.
func New(st store.Store, client portal.Client, rec *reconcile.Reconciler, led *ledger.Ledger, log *logging.Logger, cfg Config, opts ...Option) *Worker {
	w := &Worker{
		st:     st,
		client: client,
		rec:    rec,
		led:    led,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunOnce picks and processes the highest-priority eligible unit of work.
// It returns false when nothing was eligible; the caller decides how long to
// idle before the next invocation.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	if worked, err := w.runInitialPhase(ctx); worked || err != nil {
		return worked, err
	}
	if worked, err := w.runResumePhase(ctx); worked || err != nil {
		return worked, err
	}
	return w.runUpdatePhase(ctx)
}

// --- Phase 0: initial sync ---

func (w *Worker) runInitialPhase(ctx context.Context) (bool, error) {
	creds, err := w.syncableCredentials(ctx)
	if err != nil {
		return false, err
	}
	for _, cred := range creds {
		if !cred.NeedsInitialSync() {
			continue
		}
		if err := w.st.AcquireSyncLease(ctx, cred.ID); err != nil {
			if errors.Is(err, errors.ErrCredentialLocked) {
				continue
			}
			return false, err
		}
		return true, w.runInitial(ctx, cred)
	}
	return false, nil
}

func (w *Worker) runInitial(ctx context.Context, cred *model.Credential) error {
	log := w.log.WithCredential(cred.ID).WithPhase("initial")
	log.Info("initial sync starting")

	if err := w.st.SetInitialSyncState(ctx, cred.ID, model.InitialSyncInProgress); err != nil {
		w.releaseLease(ctx, cred.ID, model.SyncIdle)
		return err
	}

	run, err := w.led.Begin(ctx, cred.ID, true)
	if err != nil {
		w.releaseLease(ctx, cred.ID, model.SyncIdle)
		return err
	}

	// Initial sync fetches everything: no recency gate, no skip set.
	res, err := w.syncCredential(ctx, cred, run, syncParams{fetchAll: true})
	if err != nil {
		// Leave initialMovementsSync at in_progress: the next invocation
		// retries the whole phase. That retry is the recovery path, no
		// separate bookkeeping needed.
		log.Warn("initial sync aborted", "error", err.Error())
		w.abortRun(ctx, run, err)
		w.releaseLease(ctx, cred.ID, model.SyncIdle)
		return nil
	}

	// Completion requires a clean pass: with case errors left behind, the
	// state stays in_progress and the next invocation re-runs the phase.
	// Re-running is idempotent, already stored movements diff to nothing.
	if res.errored == 0 {
		if err := w.st.SetInitialSyncState(ctx, cred.ID, model.InitialSyncCompleted); err != nil {
			w.releaseLease(ctx, cred.ID, model.SyncIdle)
			return err
		}
	}
	w.finishRun(ctx, cred, run, res, log)
	w.releaseLease(ctx, cred.ID, model.SyncIdle)
	return nil
}

// --- Phase 1: resume ---

func (w *Worker) runResumePhase(ctx context.Context) (bool, error) {
	runs, err := w.led.Resumable(ctx)
	if err != nil {
		return false, err
	}
	for _, run := range runs {
		cred, err := w.st.GetCredential(ctx, run.CredentialID)
		if err != nil {
			if errors.Is(err, errors.ErrCredentialNotFound) {
				continue
			}
			return false, err
		}
		if !cred.Syncable() {
			continue
		}
		if err := w.st.AcquireSyncLease(ctx, cred.ID); err != nil {
			if errors.Is(err, errors.ErrCredentialLocked) {
				continue
			}
			return false, err
		}
		return true, w.runResume(ctx, cred, run)
	}
	return false, nil
}

func (w *Worker) runResume(ctx context.Context, cred *model.Credential, run *model.RunRecord) error {
	log := w.log.WithCredential(cred.ID).WithRun(run.ID).WithPhase("resume")

	if err := w.led.Resume(ctx, run); err != nil {
		if errors.Is(err, errors.ErrRunNotResumable) {
			log.Warn("run exhausted its resume attempts, marked failed")
			w.releaseLease(ctx, cred.ID, model.SyncIdle)
			return nil
		}
		w.releaseLease(ctx, cred.ID, model.SyncIdle)
		return err
	}
	log.Info("resuming run", "attempt", run.ResumeAttempts)

	// Continue only the cases the run has not already processed.
	res, err := w.syncCredential(ctx, cred, run, syncParams{
		fetchAll: run.Metadata.IsFirstRun,
		skip:     run.ProcessedKeys(),
	})
	if err != nil {
		log.Warn("resumed run aborted", "error", err.Error())
		w.abortRun(ctx, run, err)
		w.releaseLease(ctx, cred.ID, model.SyncIdle)
		return nil
	}

	if run.Metadata.IsFirstRun && res.errored == 0 {
		if err := w.st.SetInitialSyncState(ctx, cred.ID, model.InitialSyncCompleted); err != nil {
			w.releaseLease(ctx, cred.ID, model.SyncIdle)
			return err
		}
	}
	w.finishRun(ctx, cred, run, res, log)
	w.releaseLease(ctx, cred.ID, model.SyncIdle)
	return nil
}

// --- Phase 2: regular update ---

func (w *Worker) runUpdatePhase(ctx context.Context) (bool, error) {
	creds, err := w.syncableCredentials(ctx)
	if err != nil {
		return false, err
	}
	for _, cred := range creds {
		due, err := w.dueForUpdate(ctx, cred)
		if err != nil {
			return false, err
		}
		if !due {
			continue
		}
		if w.cfg.WaitForCausaCreation {
			clear, err := w.waitForCausaCreation(ctx, cred.UserID)
			if err != nil {
				return false, err
			}
			if !clear {
				// Deferred to the next cycle, not a failure.
				w.log.WithCredential(cred.ID).Info("causa creation still active, deferring")
				continue
			}
		}
		if err := w.st.AcquireSyncLease(ctx, cred.ID); err != nil {
			if errors.Is(err, errors.ErrCredentialLocked) {
				continue
			}
			return false, err
		}
		return true, w.runUpdate(ctx, cred)
	}
	return false, nil
}

func (w *Worker) runUpdate(ctx context.Context, cred *model.Credential) error {
	log := w.log.WithCredential(cred.ID).WithPhase("update")
	log.Info("regular update starting")

	run, err := w.led.Begin(ctx, cred.ID, false)
	if err != nil {
		w.releaseLease(ctx, cred.ID, model.SyncIdle)
		return err
	}

	res, err := w.syncCredential(ctx, cred, run, syncParams{})
	if err != nil {
		log.Warn("update run aborted", "error", err.Error())
		w.abortRun(ctx, run, err)
		w.releaseLease(ctx, cred.ID, model.SyncIdle)
		return nil
	}
	w.finishRun(ctx, cred, run, res, log)
	w.releaseLease(ctx, cred.ID, model.SyncIdle)
	return nil
}

// dueForUpdate applies phase-2 eligibility: initial sync done, no active
// lease, past the quiet period, and at least one linked causa stale.
func (w *Worker) dueForUpdate(ctx context.Context, cred *model.Credential) (bool, error) {
	if cred.NeedsInitialSync() || cred.SyncStatus == model.SyncInProgress {
		return false, nil
	}
	now := w.now()
	if !cred.LastRunAt.IsZero() {
		quiet := time.Duration(w.cfg.MinTimeBetweenRunsMinutes) * time.Minute
		if now.Sub(cred.LastRunAt) < quiet {
			return false, nil
		}
	}
	causas, err := w.st.ListCausasLinkedTo(ctx, cred.ID)
	if err != nil {
		return false, err
	}
	if len(causas) == 0 {
		return cred.LastRunAt.IsZero(), nil
	}
	stale := time.Duration(w.cfg.UpdateThresholdHours) * time.Hour
	for _, causa := range causas {
		if causa.LastUpdate.IsZero() || now.Sub(causa.LastUpdate) >= stale {
			return true, nil
		}
	}
	return false, nil
}

// waitForCausaCreation polls until the user's causa-creation backlog drains,
// bounded by MaxWaitMinutes. Returns false when the deadline passes with the
// backlog still present.
func (w *Worker) waitForCausaCreation(ctx context.Context, userID string) (bool, error) {
	deadline := w.now().Add(time.Duration(w.cfg.MaxWaitMinutes) * time.Minute)
	for {
		folders, err := w.st.ListUnlinkedFolders(ctx)
		if err != nil {
			return false, err
		}
		busy := false
		for _, f := range folders {
			if f.UserID == userID {
				busy = true
				break
			}
		}
		if !busy {
			return true, nil
		}
		if !w.now().Before(deadline) {
			return false, nil
		}
		if err := w.sleep(ctx, 15*time.Second); err != nil {
			return false, err
		}
	}
}

func (w *Worker) syncableCredentials(ctx context.Context) ([]*model.Credential, error) {
	enabled, valid := true, true
	return w.st.ListCredentials(ctx, store.CredentialFilter{Enabled: &enabled, IsValid: &valid})
}

func (w *Worker) releaseLease(ctx context.Context, credentialID string, status model.SyncStatus) {
	if err := w.st.ReleaseSyncLease(ctx, credentialID, status); err != nil {
		w.log.Error("failed to release sync lease", "credential", credentialID, "error", err.Error())
	}
}

func (w *Worker) abortRun(ctx context.Context, run *model.RunRecord, cause error) {
	if err := w.led.Abort(ctx, run, cause); err != nil {
		w.log.Error("failed to record aborted run", "run", run.ID, "error", err.Error())
	}
}

func (w *Worker) finishRun(ctx context.Context, cred *model.Credential, run *model.RunRecord, res *syncResult, log *logging.Logger) {
	status := model.RunCompleted
	if res.errored > 0 {
		status = model.RunPartial
	}
	if err := w.led.Complete(ctx, run, status, res.complete); err != nil {
		log.Error("failed to close run", "error", err.Error())
		return
	}

	// A complete listing walk is the only safe basis for not-found
	// reconciliation and the orphan sweep.
	if res.complete {
		if err := w.rec.ApplyNotFound(ctx, cred.UserID, res.observed, true); err != nil {
			log.Error("not-found reconciliation failed", "error", err.Error())
		}
		if purged, err := w.rec.SweepOrphans(ctx, cred.ID); err != nil {
			log.Error("orphan sweep failed", "error", err.Error())
		} else if purged > 0 {
			log.Info("orphan causas purged", "count", purged)
		}
	}
	log.Info("run finished",
		"status", string(status),
		"processed", run.Results.CausasProcessed,
		"updated", run.Results.CausasUpdated,
		"new_movimientos", run.Results.NewMovimientos,
		"complete", res.complete)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
