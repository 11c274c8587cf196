// Package manager runs the control loop that scales worker processes. Each
// tick it reads the kill switches and per-kind configuration from the store,
// evaluates schedules, probes queue depths, asks the scaling policy for a
// desired instance count, reconciles it through the supervisor, health-checks
// the survivors and persists a status snapshot for the console.
//
// Worker kinds are evaluated independently: one kind's probe or supervisor
// failure is recorded in that kind's status and never aborts the tick for
// the others.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/legaltrack/pjnsync/internal/health"
	"github.com/legaltrack/pjnsync/internal/ledger"
	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/probe"
	"github.com/legaltrack/pjnsync/internal/scaling"
	"github.com/legaltrack/pjnsync/internal/schedule"
	"github.com/legaltrack/pjnsync/internal/store"
	"github.com/legaltrack/pjnsync/internal/supervisor"
)

// maxConcurrentKinds bounds the fan-out when evaluating worker kinds.
const maxConcurrentKinds = 4

// Options tunes the manager loop.
type Options struct {
	// PollInterval is the tick interval.
	PollInterval time.Duration
	// RunsToKeep is how many finished runs the pruner retains per
	// credential.
	RunsToKeep int
	// PruneInterval is how often the ledger pruner runs. Zero disables
	// pruning.
	PruneInterval time.Duration
}

// Manager is the control loop.
type Manager struct {
	st    store.Store
	probe probe.Probe
	sup   supervisor.Supervisor
	led   *ledger.Ledger
	log   *logging.Logger
	opts  Options
	now   func() time.Time

	mu            sync.Mutex
	policies      map[model.WorkerKind]*scaling.Policy
	policyConfigs map[model.WorkerKind]model.ScalingConfig
	configVersion int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager.
func New(st store.Store, pr probe.Probe, sup supervisor.Supervisor, led *ledger.Ledger, log *logging.Logger, opts Options, options ...Option) *Manager {
	m := &Manager{
		st:            st,
		probe:         pr,
		sup:           sup,
		led:           led,
		log:           log,
		opts:          opts,
		now:           time.Now,
		policies:      make(map[model.WorkerKind]*scaling.Policy),
		policyConfigs: make(map[model.WorkerKind]model.ScalingConfig),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// BumpConfigVersion records that the file configuration was reloaded. The
// next snapshot carries the new version.
func (m *Manager) BumpConfigVersion() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configVersion++
}

// Seed writes the given worker kind configurations and a default global
// config into the store, only where no document exists yet. A console that
// has already written its own configuration always wins.
func (m *Manager) Seed(ctx context.Context, kinds []*model.WorkerKindConfig) error {
	if _, err := m.st.LoadGlobalConfig(ctx); err != nil {
		if err := m.st.SaveGlobalConfig(ctx, &model.GlobalConfig{
			Enabled:          true,
			ServiceAvailable: true,
		}); err != nil {
			return fmt.Errorf("seed global config: %w", err)
		}
	}
	for _, kc := range kinds {
		if _, err := m.st.GetWorkerConfig(ctx, kc.Kind); err == nil {
			continue
		}
		if err := m.st.SaveWorkerConfig(ctx, kc); err != nil {
			return fmt.Errorf("seed %s config: %w", kc.Kind, err)
		}
	}
	return nil
}

// Run ticks until the context is cancelled. A failed tick is logged and the
// loop carries on; the next tick starts from fresh store reads.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.opts.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pruneC <-chan time.Time
	if m.opts.PruneInterval > 0 {
		pruner := time.NewTicker(m.opts.PruneInterval)
		defer pruner.Stop()
		pruneC = pruner.C
	}

	if err := m.Tick(ctx); err != nil {
		m.log.Error("tick failed", "error", err.Error())
	}
	for {
		select {
		case <-ctx.Done():
			m.markStopped()
			return ctx.Err()
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				m.log.Error("tick failed", "error", err.Error())
			}
		case <-pruneC:
			if err := m.pruneLedger(ctx); err != nil {
				m.log.Error("ledger prune failed", "error", err.Error())
			}
		}
	}
}

// Tick runs one full evaluation pass over every configured worker kind and
// persists the resulting snapshot.
func (m *Manager) Tick(ctx context.Context) error {
	global, err := m.st.LoadGlobalConfig(ctx)
	if err != nil {
		return fmt.Errorf("load global config: %w", err)
	}
	kinds, err := m.st.ListWorkerConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list worker configs: %w", err)
	}

	m.mu.Lock()
	version := m.configVersion
	m.mu.Unlock()

	state := &model.ManagerState{
		Enabled:            global.Enabled,
		ServiceAvailable:   global.ServiceAvailable,
		MaintenanceMessage: global.MaintenanceMessage,
		IsRunning:          true,
		ConfigVersion:      version,
		LastPoll:           m.now(),
		Workers:            make(map[model.WorkerKind]model.WorkerStatus, len(kinds)),
	}

	var stateMu sync.Mutex
	p := pool.New().WithMaxGoroutines(maxConcurrentKinds)
	for _, kc := range kinds {
		kc := kc
		p.Go(func() {
			status := m.evaluateKind(ctx, global, kc)
			stateMu.Lock()
			state.Workers[kc.Kind] = status
			stateMu.Unlock()
		})
	}
	p.Wait()

	if err := m.st.SaveManagerState(ctx, state); err != nil {
		return fmt.Errorf("save manager state: %w", err)
	}
	return nil
}

// evaluateKind runs the full per-kind pass: schedule, probe, scale,
// reconcile, health. Errors are folded into the returned status.
func (m *Manager) evaluateKind(ctx context.Context, global *model.GlobalConfig, kc *model.WorkerKindConfig) model.WorkerStatus {
	log := m.log.With("kind", string(kc.Kind))
	status := model.WorkerStatus{}

	running, err := m.sup.Running(ctx, kc.Kind)
	if err != nil {
		status.Error = err.Error()
		log.Error("supervisor query failed", "error", err.Error())
		return status
	}
	status.CurrentInstances = len(running)

	// Kill switches bypass everything else: command zero and stop.
	if !global.Enabled || !kc.Enabled {
		status.Reason = "disabled"
		if !global.Enabled {
			status.Reason = "globally disabled"
		}
		m.reconcile(ctx, kc.Kind, 0, &status, log)
		return status
	}

	verdict, err := schedule.Evaluate(kc.Schedule, m.now())
	if err != nil {
		status.Error = err.Error()
		log.Error("schedule evaluation failed", "error", err.Error())
		return status
	}
	status.WithinSchedule = verdict.Within
	status.Reason = verdict.Reason

	// Newly verified accounts get their first pull regardless of the
	// working-hours window.
	if !verdict.Within && kc.Kind == model.KindSync {
		pending, err := m.probe.InitialSyncPending(ctx)
		if err != nil {
			status.Error = err.Error()
			log.Error("initial-sync probe failed", "error", err.Error())
			return status
		}
		if pending > 0 {
			status.WithinSchedule = true
			status.Reason = fmt.Sprintf("schedule bypassed: %d credentials awaiting initial sync", pending)
		}
	}

	if !status.WithinSchedule {
		m.reconcile(ctx, kc.Kind, 0, &status, log)
		return status
	}

	depth, err := m.probe.Depth(ctx, kc.Kind)
	if err != nil {
		status.Error = err.Error()
		log.Error("queue probe failed", "error", err.Error())
		return status
	}
	status.QueueDepth = depth

	decision := m.policyFor(kc).Evaluate(depth, status.CurrentInstances)
	if decision.Action != scaling.ActionNone {
		status.Reason = decision.Reason
	}
	m.reconcile(ctx, kc.Kind, decision.Desired, &status, log)

	m.checkHealth(ctx, kc, running, log)
	return status
}

func (m *Manager) reconcile(ctx context.Context, kind model.WorkerKind, desired int, status *model.WorkerStatus, log *logging.Logger) {
	status.DesiredInstances = desired
	if desired == status.CurrentInstances {
		return
	}
	started, stopped, err := m.sup.Reconcile(ctx, kind, desired)
	if err != nil {
		status.Error = err.Error()
		log.Error("reconcile failed", "desired", desired, "error", err.Error())
		return
	}
	status.CurrentInstances = status.CurrentInstances + started - stopped
	log.Info("instances reconciled", "desired", desired, "started", started, "stopped", stopped)
}

func (m *Manager) checkHealth(ctx context.Context, kc *model.WorkerKindConfig, running []supervisor.Instance, log *logging.Logger) {
	if len(running) == 0 {
		return
	}
	reports := make([]health.Report, 0, len(running))
	for _, inst := range running {
		reports = append(reports, health.Report{
			InstanceID:   inst.ID,
			StartedAt:    inst.StartedAt,
			LastActivity: inst.LastActivity,
		})
	}
	monitor := health.NewMonitor(kc.Health, health.WithClock(m.now))
	for _, flagged := range monitor.Check(reports) {
		log.Warn("instance flagged", "instance", flagged.InstanceID, "type", flagged.Type.String(), "reason", flagged.Reason)
		if err := m.sup.Restart(ctx, kc.Kind, flagged.InstanceID); err != nil {
			log.Error("restart failed", "instance", flagged.InstanceID, "error", err.Error())
		}
	}
}

// policyFor returns the kind's scaling policy, rebuilding it only when the
// stored scaling configuration changed. Rebuilding resets the cooldown, so
// unchanged configs keep their policy instance across ticks.
func (m *Manager) policyFor(kc *model.WorkerKindConfig) *scaling.Policy {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.policies[kc.Kind]; ok && m.policyConfigs[kc.Kind] == kc.Scaling {
		return p
	}
	p := scaling.FromConfig(kc.Scaling, scaling.WithClock(m.now))
	m.policies[kc.Kind] = p
	m.policyConfigs[kc.Kind] = kc.Scaling
	return p
}

func (m *Manager) pruneLedger(ctx context.Context) error {
	creds, err := m.st.ListCredentials(ctx, store.CredentialFilter{})
	if err != nil {
		return err
	}
	total := 0
	for _, cred := range creds {
		n, err := m.led.Prune(ctx, cred.ID, m.opts.RunsToKeep)
		if err != nil {
			return fmt.Errorf("prune runs for %s: %w", cred.ID, err)
		}
		total += n
	}
	if total > 0 {
		m.log.Info("old runs pruned", "count", total)
	}
	return nil
}

// markStopped flips IsRunning in the persisted snapshot on shutdown, best
// effort with a short deadline since the run context is already cancelled.
func (m *Manager) markStopped() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := m.st.LoadManagerState(ctx)
	if err != nil {
		return
	}
	state.IsRunning = false
	if err := m.st.SaveManagerState(ctx, state); err != nil {
		m.log.Warn("failed to persist shutdown state", "error", err.Error())
	}
}
