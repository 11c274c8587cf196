package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
)

// Memory is an in-memory Store implementation. It backs tests and local
// development; semantics (set unions, lease CAS, key lookups) mirror the
// mongo backend exactly so components can be exercised against either.
type Memory struct {
	mu sync.Mutex

	credentials map[string]*model.Credential
	causas      map[string]*model.Causa
	folders     map[string]*model.Folder
	runs        map[string]*model.RunRecord

	managerState  *model.ManagerState
	globalConfig  *model.GlobalConfig
	workerConfigs map[model.WorkerKind]*model.WorkerKindConfig
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		credentials:   make(map[string]*model.Credential),
		causas:        make(map[string]*model.Causa),
		folders:       make(map[string]*model.Folder),
		runs:          make(map[string]*model.RunRecord),
		workerConfigs: make(map[model.WorkerKind]*model.WorkerKindConfig),
	}
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

func (m *Memory) GetCredential(ctx context.Context, id string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[id]
	if !ok {
		return nil, errors.ErrCredentialNotFound
	}
	return copyCredential(cred), nil
}

func (m *Memory) PutCredential(ctx context.Context, cred *model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	m.credentials[cred.ID] = copyCredential(cred)
	return nil
}

func (m *Memory) ListCredentials(ctx context.Context, filter CredentialFilter) ([]*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Credential
	for _, cred := range m.credentials {
		if filter.Enabled != nil && cred.Enabled != *filter.Enabled {
			continue
		}
		if filter.IsValid != nil && cred.IsValid != *filter.IsValid {
			continue
		}
		if filter.SyncStatusNot != "" && cred.SyncStatus == filter.SyncStatusNot {
			continue
		}
		if len(filter.InitialSyncIn) > 0 && !initialSyncMatches(cred.InitialMovementsSync, filter.InitialSyncIn) {
			continue
		}
		out = append(out, copyCredential(cred))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func initialSyncMatches(state model.InitialSyncState, in []model.InitialSyncState) bool {
	for _, s := range in {
		if s == state {
			return true
		}
	}
	return false
}

func (m *Memory) AcquireSyncLease(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[id]
	if !ok {
		return errors.ErrCredentialNotFound
	}
	if cred.SyncStatus == model.SyncInProgress {
		return errors.ErrCredentialLocked
	}
	cred.SyncStatus = model.SyncInProgress
	return nil
}

func (m *Memory) ReleaseSyncLease(ctx context.Context, id string, status model.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[id]
	if !ok {
		return errors.ErrCredentialNotFound
	}
	cred.SyncStatus = status
	return nil
}

func (m *Memory) SetInitialSyncState(ctx context.Context, id string, state model.InitialSyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[id]
	if !ok {
		return errors.ErrCredentialNotFound
	}
	cred.InitialMovementsSync = state
	return nil
}

func (m *Memory) RecordRun(ctx context.Context, id, runID string, at time.Time, newMovimientos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[id]
	if !ok {
		return errors.ErrCredentialNotFound
	}
	cred.LastRunAt = at
	cred.LastRunID = runID
	cred.TotalRuns++
	cred.TotalMovimientos += newMovimientos
	return nil
}

// ---------------------------------------------------------------------------
// Causas
// ---------------------------------------------------------------------------

func (m *Memory) GetCausa(ctx context.Context, id string) (*model.Causa, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	causa, ok := m.causas[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return copyCausa(causa), nil
}

func (m *Memory) FindCausaByKey(ctx context.Context, key model.CausaKey) (*model.Causa, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := key.String()
	for _, causa := range m.causas {
		if causa.Key.String() == want {
			return copyCausa(causa), nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *Memory) InsertCausa(ctx context.Context, causa *model.Causa) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if causa.ID == "" {
		causa.ID = uuid.NewString()
	}
	m.causas[causa.ID] = copyCausa(causa)
	return nil
}

func (m *Memory) DeleteCausa(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.causas[id]; !ok {
		return errors.ErrNotFound
	}
	delete(m.causas, id)
	return nil
}

func (m *Memory) LinkCredential(ctx context.Context, causaID, credentialID string) error {
	return m.mutateCausa(causaID, func(c *model.Causa) {
		c.LinkCredential(credentialID)
	})
}

func (m *Memory) UnlinkCredential(ctx context.Context, causaID, credentialID string) error {
	return m.mutateCausa(causaID, func(c *model.Causa) {
		c.UnlinkCredential(credentialID)
	})
}

func (m *Memory) AddFolderRef(ctx context.Context, causaID, folderID string) error {
	return m.mutateCausa(causaID, func(c *model.Causa) {
		c.FolderIDs = addToUniqueSlice(c.FolderIDs, folderID)
	})
}

func (m *Memory) RemoveFolderRef(ctx context.Context, causaID, folderID string) error {
	return m.mutateCausa(causaID, func(c *model.Causa) {
		c.FolderIDs = removeFromSlice(c.FolderIDs, folderID)
	})
}

func (m *Memory) AppendMovimientos(ctx context.Context, causaID string, movs []model.Movimiento, at time.Time) error {
	return m.mutateCausa(causaID, func(c *model.Causa) {
		c.Movimientos = append(c.Movimientos, movs...)
		c.LastUpdate = at
	})
}

func (m *Memory) TouchCausa(ctx context.Context, causaID string, at time.Time) error {
	return m.mutateCausa(causaID, func(c *model.Causa) {
		c.LastUpdate = at
	})
}

func (m *Memory) ListCausasLinkedTo(ctx context.Context, credentialID string) ([]*model.Causa, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Causa
	for _, causa := range m.causas {
		if causa.HasCredential(credentialID) {
			out = append(out, copyCausa(causa))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) mutateCausa(id string, fn func(*model.Causa)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	causa, ok := m.causas[id]
	if !ok {
		return errors.ErrNotFound
	}
	fn(causa)
	return nil
}

// ---------------------------------------------------------------------------
// Folders
// ---------------------------------------------------------------------------

func (m *Memory) GetFolder(ctx context.Context, id string) (*model.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	folder, ok := m.folders[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	f := *folder
	return &f, nil
}

func (m *Memory) InsertFolder(ctx context.Context, folder *model.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	f := *folder
	m.folders[folder.ID] = &f
	return nil
}

func (m *Memory) UpdateFolder(ctx context.Context, folder *model.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[folder.ID]; !ok {
		return errors.ErrNotFound
	}
	f := *folder
	m.folders[folder.ID] = &f
	return nil
}

func (m *Memory) DeleteFolder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[id]; !ok {
		return errors.ErrNotFound
	}
	delete(m.folders, id)
	return nil
}

func (m *Memory) FindFolderByCausa(ctx context.Context, userID, causaID string) (*model.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, folder := range m.folders {
		if folder.UserID == userID && folder.CausaID == causaID {
			f := *folder
			return &f, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *Memory) FindFolderByKey(ctx context.Context, userID string, key model.CausaKey) (*model.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := key.String()
	for _, folder := range m.folders {
		if folder.UserID == userID && folder.Key.String() == want {
			f := *folder
			return &f, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (m *Memory) ListFoldersByUser(ctx context.Context, userID string) ([]*model.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Folder
	for _, folder := range m.folders {
		if folder.UserID == userID {
			f := *folder
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListUnlinkedFolders(ctx context.Context) ([]*model.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Folder
	for _, folder := range m.folders {
		if folder.CausaID == "" {
			f := *folder
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetPJNNotFound(ctx context.Context, folderID string, notFound bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	folder, ok := m.folders[folderID]
	if !ok {
		return errors.ErrNotFound
	}
	folder.PJNNotFound = notFound
	return nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

func (m *Memory) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, errors.ErrRunNotFound
	}
	return copyRun(run), nil
}

func (m *Memory) InsertRun(ctx context.Context, run *model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *Memory) UpdateRun(ctx context.Context, run *model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return errors.ErrRunNotFound
	}
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *Memory) ResumableRuns(ctx context.Context, maxAttempts int) ([]*model.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RunRecord
	for _, run := range m.runs {
		if run.Status.Resumable() && run.ResumeAttempts < maxAttempts {
			out = append(out, copyRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *Memory) LatestRunForCredential(ctx context.Context, credentialID string) (*model.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.RunRecord
	for _, run := range m.runs {
		if run.CredentialID != credentialID {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, errors.ErrRunNotFound
	}
	return copyRun(latest), nil
}

func (m *Memory) ListRunsForCredential(ctx context.Context, credentialID string, limit int) ([]*model.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RunRecord
	for _, run := range m.runs {
		if run.CredentialID == credentialID {
			out = append(out, copyRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) PruneRuns(ctx context.Context, credentialID string, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var finished []*model.RunRecord
	for _, run := range m.runs {
		if run.CredentialID == credentialID && !run.Status.Resumable() {
			finished = append(finished, run)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].StartedAt.After(finished[j].StartedAt) })
	if len(finished) <= keep {
		return 0, nil
	}
	removed := 0
	for _, run := range finished[keep:] {
		delete(m.runs, run.ID)
		removed++
	}
	return removed, nil
}

// ---------------------------------------------------------------------------
// Manager state and configuration
// ---------------------------------------------------------------------------

func (m *Memory) LoadManagerState(ctx context.Context) (*model.ManagerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.managerState == nil {
		return nil, errors.ErrNotFound
	}
	state := *m.managerState
	state.Workers = make(map[model.WorkerKind]model.WorkerStatus, len(m.managerState.Workers))
	for k, v := range m.managerState.Workers {
		state.Workers[k] = v
	}
	return &state, nil
}

func (m *Memory) SaveManagerState(ctx context.Context, state *model.ManagerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *state
	saved.Workers = make(map[model.WorkerKind]model.WorkerStatus, len(state.Workers))
	for k, v := range state.Workers {
		saved.Workers[k] = v
	}
	m.managerState = &saved
	return nil
}

func (m *Memory) LoadGlobalConfig(ctx context.Context) (*model.GlobalConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.globalConfig == nil {
		return nil, errors.ErrNotFound
	}
	cfg := *m.globalConfig
	return &cfg, nil
}

func (m *Memory) SaveGlobalConfig(ctx context.Context, cfg *model.GlobalConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *cfg
	m.globalConfig = &saved
	return nil
}

func (m *Memory) ListWorkerConfigs(ctx context.Context) ([]*model.WorkerKindConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WorkerKindConfig
	for _, cfg := range m.workerConfigs {
		c := *cfg
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (m *Memory) GetWorkerConfig(ctx context.Context, kind model.WorkerKind) (*model.WorkerKindConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.workerConfigs[kind]
	if !ok {
		return nil, errors.ErrNotFound
	}
	c := *cfg
	return &c, nil
}

func (m *Memory) SaveWorkerConfig(ctx context.Context, cfg *model.WorkerKindConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cfg
	m.workerConfigs[cfg.Kind] = &c
	return nil
}

// ---------------------------------------------------------------------------
// Copy helpers. Callers get and hand over detached documents, the same
// isolation the mongo driver provides by decoding into fresh values.
// ---------------------------------------------------------------------------

func copyCredential(c *model.Credential) *model.Credential {
	out := *c
	out.ExcludedCausas = append([]model.ExcludedCausa(nil), c.ExcludedCausas...)
	return &out
}

func copyCausa(c *model.Causa) *model.Causa {
	out := *c
	out.LinkedCredentials = append([]string(nil), c.LinkedCredentials...)
	out.FolderIDs = append([]string(nil), c.FolderIDs...)
	out.Movimientos = append([]model.Movimiento(nil), c.Movimientos...)
	return &out
}

func copyRun(r *model.RunRecord) *model.RunRecord {
	out := *r
	out.CausasDetail = append([]model.CausaOutcome(nil), r.CausasDetail...)
	return &out
}

func addToUniqueSlice(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}

func removeFromSlice(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
