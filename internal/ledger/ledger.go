// Package ledger maintains the append-only record of synchronization
// attempts. Each run documents its phase outcomes per causa, which is what
// makes interrupted runs resumable: the set of causas still pending is the
// difference between the run's target set and its recorded outcomes.
//
// The ledger is also the operator-visible failure surface. A run that
// exhausts its resume attempts is marked failed and never retried; nothing
// else notifies anyone.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/store"
)

// DefaultMaxResumeAttempts bounds how many times a run is resumed before it
// is marked terminally failed.
const DefaultMaxResumeAttempts = 3

// Ledger wraps the run store with the run lifecycle transitions.
type Ledger struct {
	runs        store.RunStore
	credentials store.CredentialStore
	maxAttempts int
	now         func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxResumeAttempts overrides the resume attempt bound.
func WithMaxResumeAttempts(n int) Option {
	return func(l *Ledger) { l.maxAttempts = n }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over the given stores.
func New(runs store.RunStore, credentials store.CredentialStore, opts ...Option) *Ledger {
	l := &Ledger{
		runs:        runs,
		credentials: credentials,
		maxAttempts: DefaultMaxResumeAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxResumeAttempts returns the configured resume bound.
func (l *Ledger) MaxResumeAttempts() int { return l.maxAttempts }

// Begin opens a new in-progress run for the credential.
func (l *Ledger) Begin(ctx context.Context, credentialID string, isFirstRun bool) (*model.RunRecord, error) {
	run := &model.RunRecord{
		ID:           uuid.NewString(),
		CredentialID: credentialID,
		Status:       model.RunInProgress,
		StartedAt:    l.now(),
		Metadata:     model.RunMetadata{IsFirstRun: isFirstRun},
	}
	if err := l.runs.InsertRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Resume re-opens an interrupted or failed run, incrementing its attempt
// counter. When the counter has already reached the bound, the run is marked
// terminally failed and ErrRunNotResumable is returned.
func (l *Ledger) Resume(ctx context.Context, run *model.RunRecord) error {
	if !run.Status.Resumable() {
		return errors.ErrRunNotResumable
	}
	if run.ResumeAttempts >= l.maxAttempts {
		run.Status = model.RunFailed
		run.FinishedAt = l.now()
		if err := l.runs.UpdateRun(ctx, run); err != nil {
			return err
		}
		return errors.ErrRunNotResumable
	}
	run.ResumeAttempts++
	run.Status = model.RunInProgress
	run.Metadata.IsResumedRun = true
	return l.runs.UpdateRun(ctx, run)
}

// RecordOutcome appends one causa's outcome to the run and persists it. An
// outcome for a key already recorded replaces the previous entry, so a
// resumed run's retry of a failed causa does not double-count.
func (l *Ledger) RecordOutcome(ctx context.Context, run *model.RunRecord, outcome model.CausaOutcome) error {
	replaced := false
	for i, d := range run.CausasDetail {
		if d.Key.String() == outcome.Key.String() {
			run.CausasDetail[i] = outcome
			replaced = true
			break
		}
	}
	if !replaced {
		run.CausasDetail = append(run.CausasDetail, outcome)
	}
	l.recount(run)
	return l.runs.UpdateRun(ctx, run)
}

// Complete closes the run with the given status, stamps its duration and
// updates the credential's last-run bookkeeping.
func (l *Ledger) Complete(ctx context.Context, run *model.RunRecord, status model.RunStatus, isComplete bool) error {
	now := l.now()
	run.Status = status
	run.FinishedAt = now
	run.DurationSeconds = now.Sub(run.StartedAt).Seconds()
	run.Results.IsComplete = isComplete
	l.recount(run)
	if err := l.runs.UpdateRun(ctx, run); err != nil {
		return err
	}
	return l.credentials.RecordRun(ctx, run.CredentialID, run.ID, now, run.Results.NewMovimientos)
}

// Abort closes the run with an error, leaving it resumable.
func (l *Ledger) Abort(ctx context.Context, run *model.RunRecord, cause error) error {
	now := l.now()
	run.Status = model.RunError
	run.FinishedAt = now
	run.DurationSeconds = now.Sub(run.StartedAt).Seconds()
	if cause != nil {
		run.Error = cause.Error()
	}
	l.recount(run)
	return l.runs.UpdateRun(ctx, run)
}

// PendingKeys computes the causas of target not yet successfully processed
// by the run. Failed outcomes count as pending so a resume retries them.
func PendingKeys(run *model.RunRecord, target []model.CausaKey) []model.CausaKey {
	done := run.ProcessedKeys()
	var pending []model.CausaKey
	for _, key := range target {
		if !done[key.String()] {
			pending = append(pending, key)
		}
	}
	return pending
}

// Resumable returns the runs still eligible for the resume phase.
func (l *Ledger) Resumable(ctx context.Context) ([]*model.RunRecord, error) {
	return l.runs.ResumableRuns(ctx, l.maxAttempts)
}

// Prune drops all but the most recent keep finished runs for a credential.
func (l *Ledger) Prune(ctx context.Context, credentialID string, keep int) (int, error) {
	return l.runs.PruneRuns(ctx, credentialID, keep)
}

// recount rebuilds the run's aggregate counters from its outcome list.
func (l *Ledger) recount(run *model.RunRecord) {
	results := model.RunResults{
		TotalCausas: run.Results.TotalCausas,
		IsComplete:  run.Results.IsComplete,
	}
	for _, d := range run.CausasDetail {
		results.CausasProcessed++
		if d.Status == model.OutcomeUpdated {
			results.CausasUpdated++
		}
		results.NewMovimientos += d.MovimientosAdded
	}
	run.Results = results
}
