package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	led := New(mem, mem, WithClock(func() time.Time { return now }))
	return led, mem
}

func seedCredential(t *testing.T, mem *store.Memory, id string) {
	t.Helper()
	err := mem.PutCredential(context.Background(), &model.Credential{
		ID:      id,
		Enabled: true,
		IsValid: true,
	})
	if err != nil {
		t.Fatalf("PutCredential: %v", err)
	}
}

func TestBeginOpensInProgressRun(t *testing.T) {
	led, mem := newTestLedger(t)
	ctx := context.Background()
	seedCredential(t, mem, "cred-1")

	run, err := led.Begin(ctx, "cred-1", true)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if run.ID == "" {
		t.Fatal("Begin returned run without ID")
	}
	if run.Status != model.RunInProgress {
		t.Fatalf("status = %q, want %q", run.Status, model.RunInProgress)
	}
	if !run.Metadata.IsFirstRun {
		t.Fatal("IsFirstRun not set")
	}

	stored, err := mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != model.RunInProgress {
		t.Fatalf("stored status = %q", stored.Status)
	}
}

func TestRecordOutcomeReplacesByKey(t *testing.T) {
	led, mem := newTestLedger(t)
	ctx := context.Background()
	seedCredential(t, mem, "cred-1")
	run, err := led.Begin(ctx, "cred-1", false)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	key := model.CausaKey{Fuero: "CIV", Number: 1234, Year: 2025}
	if err := led.RecordOutcome(ctx, run, model.CausaOutcome{
		Key:    key,
		Status: model.OutcomeError,
		Error:  "timeout",
	}); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if err := led.RecordOutcome(ctx, run, model.CausaOutcome{
		Key:              key,
		Status:           model.OutcomeUpdated,
		MovimientosAdded: 3,
	}); err != nil {
		t.Fatalf("RecordOutcome retry: %v", err)
	}

	if len(run.CausasDetail) != 1 {
		t.Fatalf("detail entries = %d, want 1", len(run.CausasDetail))
	}
	if run.CausasDetail[0].Status != model.OutcomeUpdated {
		t.Fatalf("status = %q, want updated", run.CausasDetail[0].Status)
	}
	if run.Results.CausasProcessed != 1 || run.Results.CausasUpdated != 1 {
		t.Fatalf("counters = %+v", run.Results)
	}
	if run.Results.NewMovimientos != 3 {
		t.Fatalf("NewMovimientos = %d, want 3", run.Results.NewMovimientos)
	}
}

func TestPendingKeysSkipsProcessed(t *testing.T) {
	k1 := model.CausaKey{Fuero: "CIV", Number: 1, Year: 2025}
	k2 := model.CausaKey{Fuero: "CIV", Number: 2, Year: 2025}
	k3 := model.CausaKey{Fuero: "CIV", Number: 3, Year: 2025}

	run := &model.RunRecord{
		CausasDetail: []model.CausaOutcome{
			{Key: k1, Status: model.OutcomeUpdated},
			{Key: k2, Status: model.OutcomeError, Error: "timeout"},
		},
	}

	pending := PendingKeys(run, []model.CausaKey{k1, k2, k3})
	if len(pending) != 2 {
		t.Fatalf("pending = %v, want [k2 k3]", pending)
	}
	if pending[0].String() != k2.String() || pending[1].String() != k3.String() {
		t.Fatalf("pending = %v", pending)
	}
}

func TestResumeIncrementsAttempts(t *testing.T) {
	led, mem := newTestLedger(t)
	ctx := context.Background()
	seedCredential(t, mem, "cred-1")
	run, err := led.Begin(ctx, "cred-1", false)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := led.Abort(ctx, run, errors.ErrPortalTimeout); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if err := led.Resume(ctx, run); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if run.ResumeAttempts != 1 {
		t.Fatalf("ResumeAttempts = %d, want 1", run.ResumeAttempts)
	}
	if run.Status != model.RunInProgress {
		t.Fatalf("status = %q", run.Status)
	}
	if !run.Metadata.IsResumedRun {
		t.Fatal("IsResumedRun not set")
	}
}

func TestResumeExhaustedMarksFailed(t *testing.T) {
	led, mem := newTestLedger(t)
	ctx := context.Background()
	seedCredential(t, mem, "cred-1")
	run, err := led.Begin(ctx, "cred-1", false)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	run.Status = model.RunInterrupted
	run.ResumeAttempts = led.MaxResumeAttempts()
	if err := mem.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	err = led.Resume(ctx, run)
	if !errors.Is(err, errors.ErrRunNotResumable) {
		t.Fatalf("Resume err = %v, want ErrRunNotResumable", err)
	}
	stored, err := mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != model.RunFailed {
		t.Fatalf("stored status = %q, want failed", stored.Status)
	}
}

func TestResumeRejectsTerminalRun(t *testing.T) {
	led, _ := newTestLedger(t)
	run := &model.RunRecord{ID: "r1", Status: model.RunCompleted}
	if err := led.Resume(context.Background(), run); !errors.Is(err, errors.ErrRunNotResumable) {
		t.Fatalf("err = %v, want ErrRunNotResumable", err)
	}
}

func TestCompleteUpdatesCredentialBookkeeping(t *testing.T) {
	led, mem := newTestLedger(t)
	ctx := context.Background()
	seedCredential(t, mem, "cred-1")
	run, err := led.Begin(ctx, "cred-1", false)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	key := model.CausaKey{Fuero: "CIV", Number: 1, Year: 2025}
	if err := led.RecordOutcome(ctx, run, model.CausaOutcome{
		Key: key, Status: model.OutcomeUpdated, MovimientosAdded: 5,
	}); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	if err := led.Complete(ctx, run, model.RunCompleted, true); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if run.FinishedAt.IsZero() {
		t.Fatal("FinishedAt not stamped")
	}
	if !run.Results.IsComplete {
		t.Fatal("IsComplete not set")
	}

	cred, err := mem.GetCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if cred.LastRunID != run.ID {
		t.Fatalf("LastRunID = %q, want %q", cred.LastRunID, run.ID)
	}
}
