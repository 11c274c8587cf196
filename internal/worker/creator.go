package worker

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/store"
)

// Creator is the causa-creation worker: it drains the backlog of folders
// users created by case number before any causa record existed. Each
// invocation links as many folders as it can; a folder whose causa is not
// known yet stays in the backlog for the next pass.
type Creator struct {
	st  store.Store
	log *logging.Logger
	now func() time.Time
}

// CreatorOption configures a Creator.
type CreatorOption func(*Creator)

// WithCreatorClock replaces the time source, for tests.
func WithCreatorClock(now func() time.Time) CreatorOption {
	return func(c *Creator) { c.now = now }
}

// NewCreator creates a causa-creation worker.
func NewCreator(st store.Store, log *logging.Logger, opts ...CreatorOption) *Creator {
	c := &Creator{st: st, log: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunOnce processes the current backlog of unlinked folders. It reports
// whether any folder was linked or created.
func (c *Creator) RunOnce(ctx context.Context) (bool, error) {
	folders, err := c.st.ListUnlinkedFolders(ctx)
	if err != nil {
		return false, err
	}
	worked := false
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return worked, err
		}
		linked, err := c.linkFolder(ctx, folder)
		if err != nil {
			c.log.Error("failed to link folder",
				"folder", folder.ID, "causa", folder.Key.String(), "error", err.Error())
			continue
		}
		worked = worked || linked
	}
	return worked, nil
}

// linkFolder attaches the folder to the causa matching its natural key. When
// no causa exists yet a shell record is created; the sync worker fills in
// movements once a credential observes the case.
func (c *Creator) linkFolder(ctx context.Context, folder *model.Folder) (bool, error) {
	causa, err := c.st.FindCausaByKey(ctx, folder.Key)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrNotFound):
		// LastUpdate stays zero so the sync worker treats the shell as
		// never synced.
		causa = &model.Causa{
			Key:       folder.Key,
			Source:    SourceForFolder(folder),
			CreatedAt: c.now(),
		}
		if err := c.st.InsertCausa(ctx, causa); err != nil {
			return false, err
		}
		c.log.Info("causa created for folder", "causa", folder.Key.String(), "folder", folder.ID)
	default:
		return false, err
	}

	folder.CausaID = causa.ID
	folder.UpdatedAt = c.now()
	if err := c.st.UpdateFolder(ctx, folder); err != nil {
		return false, err
	}
	if err := c.st.AddFolderRef(ctx, causa.ID, folder.ID); err != nil {
		return false, err
	}
	c.log.Info("folder linked", "folder", folder.ID, "causa", causa.ID)
	return true, nil
}

// SourceForFolder maps a folder's origin to the source of a causa created on
// its behalf. User-created folders produce manual causas; anything else is
// treated as a cache import.
func SourceForFolder(folder *model.Folder) model.Source {
	if folder.Source == model.SourceUser || folder.Source == model.SourceManual {
		return model.SourceManual
	}
	return model.SourceCache
}
