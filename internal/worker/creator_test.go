package worker

import (
	"context"
	"testing"
	"time"

	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/store"
)

func TestCreator_LinksFolderToExistingCausa(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	key := model.CausaKey{Fuero: "CIV", Number: 1234, Year: 2025}

	causa := &model.Causa{Key: key, Source: model.SourceSync}
	if err := st.InsertCausa(ctx, causa); err != nil {
		t.Fatalf("InsertCausa: %v", err)
	}
	folder := &model.Folder{UserID: "u1", Source: model.SourceUser, Key: key}
	if err := st.InsertFolder(ctx, folder); err != nil {
		t.Fatalf("InsertFolder: %v", err)
	}

	worked, err := NewCreator(st, logging.NopLogger()).RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !worked {
		t.Fatal("worked = false, want true")
	}

	got, err := st.GetFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	if got.CausaID != causa.ID {
		t.Errorf("CausaID = %q, want %q", got.CausaID, causa.ID)
	}
	updated, err := st.GetCausa(ctx, causa.ID)
	if err != nil {
		t.Fatalf("GetCausa: %v", err)
	}
	if len(updated.FolderIDs) != 1 || updated.FolderIDs[0] != folder.ID {
		t.Errorf("FolderIDs = %v, want [%s]", updated.FolderIDs, folder.ID)
	}

	backlog, err := st.ListUnlinkedFolders(ctx)
	if err != nil {
		t.Fatalf("ListUnlinkedFolders: %v", err)
	}
	if len(backlog) != 0 {
		t.Errorf("backlog = %d folders, want 0", len(backlog))
	}
}

func TestCreator_CreatesShellCausa(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	key := model.CausaKey{Fuero: "COM", Number: 77, Year: 2024}

	folder := &model.Folder{UserID: "u1", Source: model.SourceUser, Key: key}
	if err := st.InsertFolder(ctx, folder); err != nil {
		t.Fatalf("InsertFolder: %v", err)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	creator := NewCreator(st, logging.NopLogger(), WithCreatorClock(func() time.Time { return at }))
	worked, err := creator.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !worked {
		t.Fatal("worked = false, want true")
	}

	causa, err := st.FindCausaByKey(ctx, key)
	if err != nil {
		t.Fatalf("FindCausaByKey: %v", err)
	}
	if causa.Source != model.SourceManual {
		t.Errorf("Source = %q, want %q", causa.Source, model.SourceManual)
	}
	if len(causa.Movimientos) != 0 {
		t.Errorf("shell causa has %d movimientos, want 0", len(causa.Movimientos))
	}
	if !causa.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", causa.CreatedAt, at)
	}
	if !causa.LastUpdate.IsZero() {
		t.Errorf("LastUpdate = %v, want zero for a shell causa", causa.LastUpdate)
	}
	got, err := st.GetFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	if got.CausaID != causa.ID {
		t.Errorf("CausaID = %q, want %q", got.CausaID, causa.ID)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}
}

func TestCreator_EmptyBacklog(t *testing.T) {
	ctx := context.Background()
	worked, err := NewCreator(store.NewMemory(), logging.NopLogger()).RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if worked {
		t.Error("worked = true on empty backlog")
	}
}
