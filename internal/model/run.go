package model

import "time"

// RunStatus is the lifecycle state of one synchronization attempt.
type RunStatus string

const (
	// RunInProgress marks a run currently being executed, or one whose
	// worker crashed before finishing. Both look identical on disk; the
	// resume phase re-selects them.
	RunInProgress RunStatus = "in_progress"
	// RunCompleted marks a run that processed every causa it set out to.
	RunCompleted RunStatus = "completed"
	// RunPartial marks a run that finished but skipped or failed some causas.
	RunPartial RunStatus = "partial"
	// RunError marks a run aborted by a credential-level error.
	RunError RunStatus = "error"
	// RunInterrupted marks a run stopped by an operator or a forced restart.
	RunInterrupted RunStatus = "interrupted"
	// RunFailed marks a run that exhausted its resume attempts. Terminal;
	// the ledger entry is the operator-visible failure surface.
	RunFailed RunStatus = "failed"
)

// Resumable reports whether a run in this state may still be picked up by
// the resume phase.
func (s RunStatus) Resumable() bool {
	return s == RunInProgress || s == RunError || s == RunInterrupted
}

// CausaOutcomeStatus is the per-case result within a run.
type CausaOutcomeStatus string

const (
	OutcomeUpdated  CausaOutcomeStatus = "updated"
	OutcomeCurrent  CausaOutcomeStatus = "current"
	OutcomeSkipped  CausaOutcomeStatus = "skipped"
	OutcomeError    CausaOutcomeStatus = "error"
	OutcomeNotFound CausaOutcomeStatus = "not_found"
)

// CausaOutcome records what happened to one causa during a run.
type CausaOutcome struct {
	Key              CausaKey           `bson:"key" json:"key"`
	Status           CausaOutcomeStatus `bson:"status" json:"status"`
	MovimientosAdded int                `bson:"movimientosAdded" json:"movimientosAdded"`
	Error            string             `bson:"error,omitempty" json:"error,omitempty"`
}

// RunResults aggregates a run's counters.
type RunResults struct {
	TotalCausas     int `bson:"totalCausas" json:"totalCausas"`
	CausasProcessed int `bson:"causasProcessed" json:"causasProcessed"`
	CausasUpdated   int `bson:"causasUpdated" json:"causasUpdated"`
	NewMovimientos  int `bson:"newMovimientos" json:"newMovimientos"`

	// IsComplete is true only when the run walked the portal's full
	// listing. pjnNotFound reconciliation requires it.
	IsComplete bool `bson:"isComplete" json:"isComplete"`
}

// RunMetadata carries audit flags for a run.
type RunMetadata struct {
	IsFirstRun   bool `bson:"isFirstRun" json:"isFirstRun"`
	IsResumedRun bool `bson:"isResumedRun" json:"isResumedRun"`
}

// RunRecord is one append-only ledger entry: a single synchronization
// attempt for a single credential.
type RunRecord struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	CredentialID string `bson:"credentialId" json:"credentialId"`

	Status    RunStatus `bson:"status" json:"status"`
	StartedAt time.Time `bson:"startedAt" json:"startedAt"`
	// FinishedAt is zero while the run is in progress.
	FinishedAt      time.Time `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
	DurationSeconds float64   `bson:"durationSeconds" json:"durationSeconds"`

	Results      RunResults     `bson:"results" json:"results"`
	CausasDetail []CausaOutcome `bson:"causasDetail,omitempty" json:"causasDetail,omitempty"`

	ResumeAttempts int         `bson:"resumeAttempts" json:"resumeAttempts"`
	Error          string      `bson:"error,omitempty" json:"error,omitempty"`
	Metadata       RunMetadata `bson:"metadata" json:"metadata"`
}

// ProcessedKeys returns the canonical keys of causas this run already
// handled successfully. Outcomes with an error status are not counted so a
// resumed run retries them.
func (r *RunRecord) ProcessedKeys() map[string]bool {
	keys := make(map[string]bool, len(r.CausasDetail))
	for _, d := range r.CausasDetail {
		if d.Status == OutcomeError {
			continue
		}
		keys[d.Key.String()] = true
	}
	return keys
}
