// Package reconcile maps externally observed cases onto local causa and
// folder documents. All mutations are idempotent set operations, so replaying
// a page of portal results never duplicates links or folders.
//
// Ownership rules are strict: the reconciler hard-deletes only causas it
// created (source = sync) with no remaining external links. Attempting to
// delete anything else is a programming error surfaced as a fatal
// ReconcileError, never silently skipped.
package reconcile

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/portal"
	"github.com/legaltrack/pjnsync/internal/store"
)

// Reconciler applies portal observations to the record store.
type Reconciler struct {
	st  store.Store
	log *logging.Logger
	now func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler over the given store.
func New(st store.Store, log *logging.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{st: st, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpsertCausa materializes an externally observed case. A missing causa is
// created with source = sync and the credential as its only link; an existing
// one keeps its source and gains the credential in its linked set. Calling
// twice with the same inputs is a no-op.
func (r *Reconciler) UpsertCausa(ctx context.Context, summary portal.CaseSummary, credentialID string) (*model.Causa, error) {
	causa, err := r.st.FindCausaByKey(ctx, summary.Key)
	if err == nil {
		if !causa.HasCredential(credentialID) {
			if err := r.st.LinkCredential(ctx, causa.ID, credentialID); err != nil {
				return nil, err
			}
			causa.LinkCredential(credentialID)
		}
		return causa, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	causa = &model.Causa{
		Key:               summary.Key,
		Caratula:          summary.Caratula,
		Source:            model.SourceSync,
		LinkedCredentials: []string{credentialID},
		CreatedAt:         r.now(),
	}
	if err := r.st.InsertCausa(ctx, causa); err != nil {
		return nil, err
	}
	r.log.Debug("causa created", "causa", causa.Key.String(), "credential", credentialID)
	return causa, nil
}

// EnsureFolder gives the credential's user a folder onto the causa. The
// exclusions set must be precomputed from the credential (ExclusionSet) once
// per batch; an excluded key is skipped entirely and the returned folder is
// nil. Returns the folder and whether it was newly created.
func (r *Reconciler) EnsureFolder(ctx context.Context, causa *model.Causa, cred *model.Credential, exclusions map[string]bool) (*model.Folder, bool, error) {
	if exclusions[causa.Key.String()] {
		return nil, false, nil
	}

	folder, err := r.st.FindFolderByCausa(ctx, cred.UserID, causa.ID)
	if err == nil {
		return folder, false, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}

	// No folder points at this causa yet. A folder under the same natural
	// key may still exist: attach it when unlinked, or leave it alone when
	// it already points at a different causa (duplicate case numbers
	// across fueros).
	folder, err = r.st.FindFolderByKey(ctx, cred.UserID, causa.Key)
	switch {
	case err == nil && folder.CausaID == "":
		folder.CausaID = causa.ID
		folder.UpdatedAt = r.now()
		if err := r.st.UpdateFolder(ctx, folder); err != nil {
			return nil, false, err
		}
		if err := r.st.AddFolderRef(ctx, causa.ID, folder.ID); err != nil {
			return nil, false, err
		}
		return folder, false, nil
	case err != nil && !errors.Is(err, errors.ErrNotFound):
		return nil, false, err
	}

	now := r.now()
	folder = &model.Folder{
		UserID:    cred.UserID,
		Source:    model.SourceSync,
		CausaID:   causa.ID,
		Key:       causa.Key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.st.InsertFolder(ctx, folder); err != nil {
		return nil, false, err
	}
	if err := r.st.AddFolderRef(ctx, causa.ID, folder.ID); err != nil {
		return nil, false, err
	}
	r.log.Debug("folder created", "folder", folder.ID, "causa", causa.Key.String(), "user", cred.UserID)
	return folder, true, nil
}

// RemoveFolder handles a user deleting a sync-created folder: the folder is
// dropped, the case key is added to the credential's exclusion set so later
// syncs do not resurrect it, and the backing causa goes through the cleanup
// decision. Returns whether the causa was deleted.
func (r *Reconciler) RemoveFolder(ctx context.Context, folderID string, cred *model.Credential) (bool, error) {
	folder, err := r.st.GetFolder(ctx, folderID)
	if err != nil {
		return false, err
	}

	if err := r.st.DeleteFolder(ctx, folderID); err != nil {
		return false, err
	}
	if folder.CausaID != "" {
		if err := r.st.RemoveFolderRef(ctx, folder.CausaID, folderID); err != nil {
			return false, err
		}
	}

	cred.Exclude(folder.Key, "", r.now())
	if err := r.st.PutCredential(ctx, cred); err != nil {
		return false, err
	}

	if folder.CausaID == "" {
		return false, nil
	}
	causa, err := r.st.GetCausa(ctx, folder.CausaID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return r.cleanup(ctx, causa, cred.ID)
}

// UnlinkCredential detaches a credential from everything it observed: each
// linked causa goes through the cleanup decision, and the user's sync-created
// folders onto deleted causas are dropped with them. Returns how many causas
// were hard-deleted.
func (r *Reconciler) UnlinkCredential(ctx context.Context, cred *model.Credential) (int, error) {
	causas, err := r.st.ListCausasLinkedTo(ctx, cred.ID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, causa := range causas {
		folder, err := r.st.FindFolderByCausa(ctx, cred.UserID, causa.ID)
		if err == nil && folder.Source == model.SourceSync {
			if err := r.st.DeleteFolder(ctx, folder.ID); err != nil {
				return deleted, err
			}
			if err := r.st.RemoveFolderRef(ctx, causa.ID, folder.ID); err != nil {
				return deleted, err
			}
			causa.FolderIDs = removeString(causa.FolderIDs, folder.ID)
		} else if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return deleted, err
		}

		gone, err := r.cleanup(ctx, causa, cred.ID)
		if err != nil {
			return deleted, err
		}
		if gone {
			deleted++
		}
	}
	return deleted, nil
}

// SweepOrphans purges sync-created causas linked to the credential that have
// no folder attached anywhere, leftovers of a prior partial cleanup. They are
// unreachable from any folder, so the sweep scans the linked set directly.
// Returns how many causas were removed.
func (r *Reconciler) SweepOrphans(ctx context.Context, credentialID string) (int, error) {
	causas, err := r.st.ListCausasLinkedTo(ctx, credentialID)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, causa := range causas {
		if causa.Source != model.SourceSync || len(causa.FolderIDs) != 0 {
			continue
		}
		if err := r.st.UnlinkCredential(ctx, causa.ID, credentialID); err != nil {
			return purged, err
		}
		causa.UnlinkCredential(credentialID)
		if len(causa.LinkedCredentials) == 0 {
			if err := r.hardDelete(ctx, causa); err != nil {
				return purged, err
			}
			purged++
		}
	}
	return purged, nil
}

// ApplyNotFound reconciles pjnNotFound flags on the user's sync-created
// folders against the complete key set of a full portal scan: a key absent
// from the scan flags its folder, a present key clears a previously set flag.
// complete must reflect whether the scan walked the portal's entire listing;
// a partial scan is rejected outright to keep the flags trustworthy.
func (r *Reconciler) ApplyNotFound(ctx context.Context, userID string, observed map[string]bool, complete bool) error {
	if !complete {
		return errors.NewReconcileError("refusing to reconcile from partial scan", errors.ErrPartialScan)
	}
	folders, err := r.st.ListFoldersByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, folder := range folders {
		if folder.Source != model.SourceSync {
			continue
		}
		key := folder.Key.String()
		switch {
		case !observed[key] && !folder.PJNNotFound:
			if err := r.st.SetPJNNotFound(ctx, folder.ID, true); err != nil {
				return err
			}
			r.log.Info("case no longer listed on portal", "folder", folder.ID, "causa", key)
		case observed[key] && folder.PJNNotFound:
			if err := r.st.SetPJNNotFound(ctx, folder.ID, false); err != nil {
				return err
			}
			r.log.Info("case listed again on portal", "folder", folder.ID, "causa", key)
		}
	}
	return nil
}

// cleanup applies the ownership decision for one causa losing a credential:
// a sync-created causa with no other links is deleted entirely; every other
// combination only removes the credential from the linked set.
func (r *Reconciler) cleanup(ctx context.Context, causa *model.Causa, credentialID string) (bool, error) {
	otherLinks := false
	for _, id := range causa.LinkedCredentials {
		if id != credentialID {
			otherLinks = true
			break
		}
	}

	if causa.Source == model.SourceSync && !otherLinks {
		if err := r.hardDelete(ctx, causa); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, r.st.UnlinkCredential(ctx, causa.ID, credentialID)
}

// hardDelete removes a causa document. Deleting a causa the sync system did
// not create violates ownership and is fatal.
func (r *Reconciler) hardDelete(ctx context.Context, causa *model.Causa) error {
	if causa.Source != model.SourceSync {
		return errors.NewReconcileError("attempted delete of foreign causa", errors.ErrNotSyncOwned).
			WithCausa(causa.Key.String())
	}
	if err := r.st.DeleteCausa(ctx, causa.ID); err != nil {
		return err
	}
	r.log.Info("causa deleted", "causa", causa.Key.String())
	return nil
}

func removeString(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
