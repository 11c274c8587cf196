package store

import (
	"context"
	"testing"
	"time"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
)

func seedCredential(t *testing.T, m *Memory, cred *model.Credential) *model.Credential {
	t.Helper()
	if err := m.PutCredential(context.Background(), cred); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}
	return cred
}

func TestMemory_AcquireSyncLease(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	cred := seedCredential(t, m, &model.Credential{ID: "cred1", UserID: "u1", Enabled: true, IsValid: true, SyncStatus: model.SyncIdle})

	if err := m.AcquireSyncLease(ctx, cred.ID); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Second acquire must lose the race.
	if err := m.AcquireSyncLease(ctx, cred.ID); !errors.Is(err, errors.ErrCredentialLocked) {
		t.Errorf("second acquire: got %v, want ErrCredentialLocked", err)
	}

	if err := m.ReleaseSyncLease(ctx, cred.ID, model.SyncIdle); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := m.AcquireSyncLease(ctx, cred.ID); err != nil {
		t.Errorf("acquire after release: %v", err)
	}

	if err := m.AcquireSyncLease(ctx, "ghost"); !errors.Is(err, errors.ErrCredentialNotFound) {
		t.Errorf("acquire missing credential: got %v", err)
	}
}

func TestMemory_LinkCredentialSetSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	causa := &model.Causa{Key: model.CausaKey{Fuero: "CIV", Number: 12345, Year: 2024}, Source: model.SourceSync}
	if err := m.InsertCausa(ctx, causa); err != nil {
		t.Fatalf("InsertCausa: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := m.LinkCredential(ctx, causa.ID, "cred1"); err != nil {
			t.Fatalf("LinkCredential: %v", err)
		}
	}
	got, err := m.GetCausa(ctx, causa.ID)
	if err != nil {
		t.Fatalf("GetCausa: %v", err)
	}
	if len(got.LinkedCredentials) != 1 {
		t.Errorf("linkedCredentials = %v, want exactly one entry", got.LinkedCredentials)
	}

	if err := m.UnlinkCredential(ctx, causa.ID, "cred1"); err != nil {
		t.Fatalf("UnlinkCredential: %v", err)
	}
	got, _ = m.GetCausa(ctx, causa.ID)
	if len(got.LinkedCredentials) != 0 {
		t.Errorf("after unlink: %v, want empty", got.LinkedCredentials)
	}
}

func TestMemory_FindCausaByKey_IncidentDistinct(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := &model.Causa{Key: model.CausaKey{Fuero: "COM", Number: 7, Year: 2023}}
	incident := &model.Causa{Key: model.CausaKey{Fuero: "COM", Number: 7, Year: 2023, Incident: "1"}}
	if err := m.InsertCausa(ctx, base); err != nil {
		t.Fatal(err)
	}
	if err := m.InsertCausa(ctx, incident); err != nil {
		t.Fatal(err)
	}

	got, err := m.FindCausaByKey(ctx, model.CausaKey{Fuero: "COM", Number: 7, Year: 2023})
	if err != nil {
		t.Fatalf("FindCausaByKey: %v", err)
	}
	if got.ID != base.ID {
		t.Errorf("found %s, want base causa %s", got.ID, base.ID)
	}

	got, err = m.FindCausaByKey(ctx, model.CausaKey{Fuero: "COM", Number: 7, Year: 2023, Incident: "1"})
	if err != nil {
		t.Fatalf("FindCausaByKey with incident: %v", err)
	}
	if got.ID != incident.ID {
		t.Errorf("found %s, want incident causa %s", got.ID, incident.ID)
	}
}

func TestMemory_DetachedCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	causa := &model.Causa{Key: model.CausaKey{Fuero: "CIV", Number: 1, Year: 2024}, LinkedCredentials: []string{"cred1"}}
	if err := m.InsertCausa(ctx, causa); err != nil {
		t.Fatal(err)
	}

	got, _ := m.GetCausa(ctx, causa.ID)
	got.LinkedCredentials[0] = "mutated"

	again, _ := m.GetCausa(ctx, causa.ID)
	if again.LinkedCredentials[0] != "cred1" {
		t.Error("mutation of a returned document leaked into the store")
	}
}

func TestMemory_ResumableRuns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	runs := []*model.RunRecord{
		{ID: "r1", CredentialID: "c1", Status: model.RunInProgress, StartedAt: base.Add(2 * time.Hour)},
		{ID: "r2", CredentialID: "c2", Status: model.RunError, StartedAt: base.Add(time.Hour)},
		{ID: "r3", CredentialID: "c3", Status: model.RunCompleted, StartedAt: base},
		{ID: "r4", CredentialID: "c4", Status: model.RunInterrupted, StartedAt: base, ResumeAttempts: 3},
		{ID: "r5", CredentialID: "c5", Status: model.RunFailed, StartedAt: base},
	}
	for _, r := range runs {
		if err := m.InsertRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.ResumableRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ResumableRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d resumable runs, want 2", len(got))
	}
	// Oldest first.
	if got[0].ID != "r2" || got[1].ID != "r1" {
		t.Errorf("order = [%s %s], want [r2 r1]", got[0].ID, got[1].ID)
	}
}

func TestMemory_LatestRunAndPrune(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		run := &model.RunRecord{
			CredentialID: "cred1",
			Status:       model.RunCompleted,
			StartedAt:    base.Add(time.Duration(i) * time.Hour),
		}
		if err := m.InsertRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}
	// An in-progress run must survive pruning regardless of age.
	if err := m.InsertRun(ctx, &model.RunRecord{ID: "active", CredentialID: "cred1", Status: model.RunInProgress, StartedAt: base.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	latest, err := m.LatestRunForCredential(ctx, "cred1")
	if err != nil {
		t.Fatalf("LatestRunForCredential: %v", err)
	}
	if !latest.StartedAt.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("latest StartedAt = %v, want %v", latest.StartedAt, base.Add(4*time.Hour))
	}

	removed, err := m.PruneRuns(ctx, "cred1", 2)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if _, err := m.GetRun(ctx, "active"); err != nil {
		t.Errorf("in-progress run was pruned: %v", err)
	}

	if _, err := m.LatestRunForCredential(ctx, "nobody"); !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("latest for unknown credential: got %v", err)
	}
}

func TestMemory_ListCredentialsFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	enabled, valid := true, true

	seedCredential(t, m, &model.Credential{ID: "a", Enabled: true, IsValid: true, SyncStatus: model.SyncIdle, InitialMovementsSync: model.InitialSyncPending})
	seedCredential(t, m, &model.Credential{ID: "b", Enabled: true, IsValid: true, SyncStatus: model.SyncInProgress})
	seedCredential(t, m, &model.Credential{ID: "c", Enabled: false, IsValid: true, SyncStatus: model.SyncIdle})
	seedCredential(t, m, &model.Credential{ID: "d", Enabled: true, IsValid: false, SyncStatus: model.SyncIdle})

	got, err := m.ListCredentials(ctx, CredentialFilter{
		Enabled:       &enabled,
		IsValid:       &valid,
		SyncStatusNot: model.SyncInProgress,
	})
	if err != nil {
		t.Fatalf("ListCredentials: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("got %d credentials, want only a", len(got))
	}

	got, err = m.ListCredentials(ctx, CredentialFilter{
		InitialSyncIn: []model.InitialSyncState{model.InitialSyncPending, model.InitialSyncInProgress},
	})
	if err != nil {
		t.Fatalf("ListCredentials: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("initial-sync filter: got %v", got)
	}
}

func TestMemory_ManagerStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.LoadManagerState(ctx); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("empty store: got %v, want ErrNotFound", err)
	}

	state := &model.ManagerState{
		Enabled:   true,
		IsRunning: true,
		LastPoll:  time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC),
		Workers: map[model.WorkerKind]model.WorkerStatus{
			model.KindSync: {QueueDepth: 4, DesiredInstances: 2, WithinSchedule: true},
		},
	}
	if err := m.SaveManagerState(ctx, state); err != nil {
		t.Fatalf("SaveManagerState: %v", err)
	}

	got, err := m.LoadManagerState(ctx)
	if err != nil {
		t.Fatalf("LoadManagerState: %v", err)
	}
	if got.Workers[model.KindSync].QueueDepth != 4 {
		t.Errorf("round-trip lost worker status: %+v", got.Workers)
	}
}
