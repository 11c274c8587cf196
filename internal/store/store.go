// Package store defines the persistence interfaces the manager, workers and
// reconciler depend on, plus two backends: mongo (production) and memory
// (tests). Mutual exclusion between worker processes rides on the store's
// compare-and-swap operations, not on in-process locks.
package store

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// CredentialFilter narrows ListCredentials. Nil fields match everything.
type CredentialFilter struct {
	Enabled       *bool
	IsValid       *bool
	SyncStatusNot model.SyncStatus
	InitialSyncIn []model.InitialSyncState
}

// CredentialStore persists portal credentials and their sync leases.
type CredentialStore interface {
	GetCredential(ctx context.Context, id string) (*model.Credential, error)
	PutCredential(ctx context.Context, cred *model.Credential) error
	ListCredentials(ctx context.Context, filter CredentialFilter) ([]*model.Credential, error)

	// AcquireSyncLease atomically sets syncStatus to in_progress, guarded
	// by the current value not already being in_progress. Returns
	// errors.ErrCredentialLocked when another worker holds the lease.
	AcquireSyncLease(ctx context.Context, id string) error

	// ReleaseSyncLease sets syncStatus back to the given terminal value
	// and records the run outcome on the credential.
	ReleaseSyncLease(ctx context.Context, id string, status model.SyncStatus) error

	// SetInitialSyncState advances the credential's initial-sync tri-state.
	SetInitialSyncState(ctx context.Context, id string, state model.InitialSyncState) error

	// RecordRun updates the credential's last-run bookkeeping.
	RecordRun(ctx context.Context, id, runID string, at time.Time, newMovimientos int) error
}

// CausaStore persists causas and their ownership sets.
type CausaStore interface {
	GetCausa(ctx context.Context, id string) (*model.Causa, error)
	FindCausaByKey(ctx context.Context, key model.CausaKey) (*model.Causa, error)
	InsertCausa(ctx context.Context, causa *model.Causa) error
	DeleteCausa(ctx context.Context, id string) error

	// LinkCredential adds the credential to the causa's linked set.
	// Set semantics: linking twice is a no-op.
	LinkCredential(ctx context.Context, causaID, credentialID string) error
	UnlinkCredential(ctx context.Context, causaID, credentialID string) error

	AddFolderRef(ctx context.Context, causaID, folderID string) error
	RemoveFolderRef(ctx context.Context, causaID, folderID string) error

	// AppendMovimientos appends new movement entries and bumps LastUpdate.
	AppendMovimientos(ctx context.Context, causaID string, movs []model.Movimiento, at time.Time) error

	// TouchCausa bumps LastUpdate without adding movements.
	TouchCausa(ctx context.Context, causaID string, at time.Time) error

	// ListCausasLinkedTo returns every causa whose linked set contains the
	// credential.
	ListCausasLinkedTo(ctx context.Context, credentialID string) ([]*model.Causa, error)
}

// FolderStore persists per-user folders.
type FolderStore interface {
	GetFolder(ctx context.Context, id string) (*model.Folder, error)
	InsertFolder(ctx context.Context, folder *model.Folder) error
	UpdateFolder(ctx context.Context, folder *model.Folder) error
	DeleteFolder(ctx context.Context, id string) error

	// FindFolderByCausa finds the user's folder pointing at the causa id.
	FindFolderByCausa(ctx context.Context, userID, causaID string) (*model.Folder, error)

	// FindFolderByKey finds the user's folder by natural key, regardless
	// of its causaId link.
	FindFolderByKey(ctx context.Context, userID string, key model.CausaKey) (*model.Folder, error)

	ListFoldersByUser(ctx context.Context, userID string) ([]*model.Folder, error)

	// ListUnlinkedFolders returns folders with no causaId yet, the backlog
	// of the causa-creation worker.
	ListUnlinkedFolders(ctx context.Context) ([]*model.Folder, error)

	SetPJNNotFound(ctx context.Context, folderID string, notFound bool) error
}

// RunStore persists the run ledger.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)
	InsertRun(ctx context.Context, run *model.RunRecord) error
	UpdateRun(ctx context.Context, run *model.RunRecord) error

	// ResumableRuns returns runs whose status is still resumable and whose
	// resume attempts have not reached maxAttempts, oldest first.
	ResumableRuns(ctx context.Context, maxAttempts int) ([]*model.RunRecord, error)

	// LatestRunForCredential returns the most recently started run, or
	// errors.ErrRunNotFound when the credential has never run.
	LatestRunForCredential(ctx context.Context, credentialID string) (*model.RunRecord, error)

	ListRunsForCredential(ctx context.Context, credentialID string, limit int) ([]*model.RunRecord, error)

	// PruneRuns deletes all but the most recent keep finished runs for the
	// credential and returns how many were removed.
	PruneRuns(ctx context.Context, credentialID string, keep int) (int, error)
}

// StateStore persists the manager's status snapshot and configuration
// documents written by the admin console.
type StateStore interface {
	LoadManagerState(ctx context.Context) (*model.ManagerState, error)
	SaveManagerState(ctx context.Context, state *model.ManagerState) error

	LoadGlobalConfig(ctx context.Context) (*model.GlobalConfig, error)
	SaveGlobalConfig(ctx context.Context, cfg *model.GlobalConfig) error

	ListWorkerConfigs(ctx context.Context) ([]*model.WorkerKindConfig, error)
	GetWorkerConfig(ctx context.Context, kind model.WorkerKind) (*model.WorkerKindConfig, error)
	SaveWorkerConfig(ctx context.Context, cfg *model.WorkerKindConfig) error
}

// Store aggregates every persistence concern behind one handle.
type Store interface {
	CredentialStore
	CausaStore
	FolderStore
	RunStore
	StateStore
}
