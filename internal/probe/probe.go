// Package probe measures the pending-work backlog per worker kind. Probes
// are pure reads against the store; the manager feeds their counts into the
// scaler every tick.
package probe

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/store"
)

// Probe reports the queue depth for one worker kind.
type Probe interface {
	// Depth counts the pending work items for the kind.
	Depth(ctx context.Context, kind model.WorkerKind) (int, error)

	// InitialSyncPending counts credentials awaiting their first full data
	// pull. A non-zero count lets the sync kind bypass its schedule window.
	InitialSyncPending(ctx context.Context) (int, error)
}

// Thresholds tunes the staleness queries behind the sync kind's depth.
type Thresholds struct {
	// UpdateThresholdHours marks a causa stale when its last update is
	// older than this many hours.
	UpdateThresholdHours int
	// MinTimeBetweenRunsMinutes keeps a credential out of the backlog for
	// this long after its last run.
	MinTimeBetweenRunsMinutes int
	// MaxResumeAttempts bounds which interrupted runs still count.
	MaxResumeAttempts int
}

// DefaultThresholds matches the portal's practical update cadence.
func DefaultThresholds() Thresholds {
	return Thresholds{
		UpdateThresholdHours:      24,
		MinTimeBetweenRunsMinutes: 60,
		MaxResumeAttempts:         3,
	}
}

// StoreProbe derives queue depth from live store queries.
type StoreProbe struct {
	st         store.Store
	thresholds Thresholds
	now        func() time.Time
}

// Option configures a StoreProbe.
type Option func(*StoreProbe)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *StoreProbe) { p.now = now }
}

// NewStoreProbe creates a probe over the given store.
func NewStoreProbe(st store.Store, thresholds Thresholds, opts ...Option) *StoreProbe {
	p := &StoreProbe{st: st, thresholds: thresholds, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *StoreProbe) Depth(ctx context.Context, kind model.WorkerKind) (int, error) {
	switch kind {
	case model.KindSync:
		return p.syncDepth(ctx)
	case model.KindCausaCreation:
		folders, err := p.st.ListUnlinkedFolders(ctx)
		if err != nil {
			return 0, err
		}
		return len(folders), nil
	default:
		return 0, nil
	}
}

func (p *StoreProbe) InitialSyncPending(ctx context.Context) (int, error) {
	creds, err := p.syncableCredentials(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cred := range creds {
		if cred.NeedsInitialSync() {
			n++
		}
	}
	return n, nil
}

// syncDepth counts distinct credentials with pending work across all three
// phases: initial sync, resumable runs and overdue regular updates. A
// credential appearing in more than one phase counts once.
func (p *StoreProbe) syncDepth(ctx context.Context) (int, error) {
	creds, err := p.syncableCredentials(ctx)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]*model.Credential, len(creds))
	for _, cred := range creds {
		byID[cred.ID] = cred
	}

	counted := make(map[string]bool)
	for _, cred := range creds {
		if cred.NeedsInitialSync() {
			counted[cred.ID] = true
		}
	}

	runs, err := p.st.ResumableRuns(ctx, p.thresholds.MaxResumeAttempts)
	if err != nil {
		return 0, err
	}
	for _, run := range runs {
		if _, ok := byID[run.CredentialID]; ok {
			counted[run.CredentialID] = true
		}
	}

	for _, cred := range creds {
		if counted[cred.ID] {
			continue
		}
		due, err := p.dueForUpdate(ctx, cred)
		if err != nil {
			return 0, err
		}
		if due {
			counted[cred.ID] = true
		}
	}
	return len(counted), nil
}

func (p *StoreProbe) syncableCredentials(ctx context.Context) ([]*model.Credential, error) {
	enabled, valid := true, true
	return p.st.ListCredentials(ctx, store.CredentialFilter{
		Enabled: &enabled,
		IsValid: &valid,
	})
}

// dueForUpdate applies the regular-update eligibility: the credential is
// outside its between-runs quiet period, holds no active lease, and links at
// least one causa whose last update exceeds the staleness threshold.
func (p *StoreProbe) dueForUpdate(ctx context.Context, cred *model.Credential) (bool, error) {
	if cred.SyncStatus == model.SyncInProgress {
		return false, nil
	}
	now := p.now()
	if !cred.LastRunAt.IsZero() {
		quiet := time.Duration(p.thresholds.MinTimeBetweenRunsMinutes) * time.Minute
		if now.Sub(cred.LastRunAt) < quiet {
			return false, nil
		}
	}

	causas, err := p.st.ListCausasLinkedTo(ctx, cred.ID)
	if err != nil {
		return false, err
	}
	if len(causas) == 0 {
		// Nothing linked yet: only a first run can change that.
		return cred.LastRunAt.IsZero(), nil
	}
	stale := time.Duration(p.thresholds.UpdateThresholdHours) * time.Hour
	for _, causa := range causas {
		if causa.LastUpdate.IsZero() || now.Sub(causa.LastUpdate) >= stale {
			return true, nil
		}
	}
	return false, nil
}

// Static is a fixed-depth probe for manager tests.
type Static struct {
	Depths  map[model.WorkerKind]int
	Initial int
	Err     error
}

func (s *Static) Depth(ctx context.Context, kind model.WorkerKind) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Depths[kind], nil
}

func (s *Static) InitialSyncPending(ctx context.Context) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Initial, nil
}
