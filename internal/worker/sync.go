package worker

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/portal"
)

// syncParams tunes one credential walk.
type syncParams struct {
	// fetchAll disables the recency gate: every listed case has its
	// movements fetched. Initial sync and its resumes use this.
	fetchAll bool
	// skip holds canonical keys already processed by the run being
	// resumed.
	skip map[string]bool
}

// syncResult is what a credential walk observed.
type syncResult struct {
	// observed is the canonical key set of every case the listing showed,
	// including skipped and excluded ones.
	observed map[string]bool
	// complete is true when every listing page was walked. Only a
	// complete walk may feed not-found reconciliation.
	complete bool
	// errored counts cases whose outcome was an error.
	errored int
}

// syncCredential logs in once and walks the credential's full case listing,
// reconciling and fetching movements per case. Case-level failures are
// recorded in the run and do not stop the walk; a returned error is
// credential-level and aborts the run.
func (w *Worker) syncCredential(ctx context.Context, cred *model.Credential, run *model.RunRecord, params syncParams) (*syncResult, error) {
	session, err := w.client.Login(ctx, cred.ID)
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	res := &syncResult{observed: make(map[string]bool)}
	exclusions := cred.ExclusionSet()
	// One jurisdiction-unavailable observation cools down the whole fuero
	// for the rest of this run.
	downFueros := make(map[string]bool)

	stale := time.Duration(w.cfg.UpdateThresholdHours) * time.Hour
	first := true

	for page := 0; ; page++ {
		listing, err := session.ListCausas(ctx, page)
		if err != nil {
			return res, err
		}
		if first {
			run.Results.TotalCausas = listing.Total
			first = false
		}

		for _, summary := range listing.Cases {
			key := summary.Key.String()
			res.observed[key] = true

			if params.skip[key] {
				continue
			}
			if exclusions[key] {
				w.record(ctx, run, model.CausaOutcome{
					Key:    summary.Key,
					Status: model.OutcomeSkipped,
					Error:  "excluded by user",
				})
				continue
			}

			outcome := w.syncCausa(ctx, session, cred, summary, exclusions, downFueros, params.fetchAll, stale)
			if outcome.Status == model.OutcomeError {
				res.errored++
			}
			w.record(ctx, run, outcome)

			if err := w.sleep(ctx, w.cfg.DelayBetweenCausas); err != nil {
				return res, err
			}
		}

		if !listing.HasNext {
			break
		}
	}

	res.complete = true
	return res, nil
}

// syncCausa reconciles one listed case and fetches its movements. Never
// returns an error: every failure mode becomes a recorded outcome.
func (w *Worker) syncCausa(ctx context.Context, session portal.Session, cred *model.Credential, summary portal.CaseSummary, exclusions, downFueros map[string]bool, fetchAll bool, stale time.Duration) model.CausaOutcome {
	causa, err := w.rec.UpsertCausa(ctx, summary, cred.ID)
	if err != nil {
		return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeError, Error: err.Error()}
	}
	if _, _, err := w.rec.EnsureFolder(ctx, causa, cred, exclusions); err != nil {
		return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeError, Error: err.Error()}
	}

	if downFueros[summary.Key.Fuero] {
		return model.CausaOutcome{
			Key:    summary.Key,
			Status: model.OutcomeSkipped,
			Error:  "fuero cooling down",
		}
	}

	// Recency gate: outside initial sync, a recently updated causa is not
	// re-fetched.
	if !fetchAll && !causa.LastUpdate.IsZero() && w.now().Sub(causa.LastUpdate) < stale {
		return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeCurrent}
	}

	movs, err := session.FetchMovimientos(ctx, summary.Key)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrCausaNotFound):
			return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeNotFound}
		case errors.IsJurisdictionOutage(err):
			downFueros[summary.Key.Fuero] = true
			return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeError, Error: err.Error()}
		default:
			return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeError, Error: err.Error()}
		}
	}

	// Diff against stored movement keys: only genuinely new entries are
	// appended, a re-fetch of known history is a no-op.
	known := causa.MovimientoKeys()
	var fresh []model.Movimiento
	for _, m := range movs {
		if known[m.Key] {
			continue
		}
		fresh = append(fresh, model.Movimiento{
			Key:   m.Key,
			Date:  m.Date,
			Title: m.Title,
			Court: m.Court,
		})
	}

	now := w.now()
	if len(fresh) == 0 {
		if err := w.st.TouchCausa(ctx, causa.ID, now); err != nil {
			return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeError, Error: err.Error()}
		}
		return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeCurrent}
	}
	if err := w.st.AppendMovimientos(ctx, causa.ID, fresh, now); err != nil {
		return model.CausaOutcome{Key: summary.Key, Status: model.OutcomeError, Error: err.Error()}
	}
	return model.CausaOutcome{
		Key:              summary.Key,
		Status:           model.OutcomeUpdated,
		MovimientosAdded: len(fresh),
	}
}

func (w *Worker) record(ctx context.Context, run *model.RunRecord, outcome model.CausaOutcome) {
	if err := w.led.RecordOutcome(ctx, run, outcome); err != nil {
		w.log.Error("failed to record outcome", "run", run.ID, "causa", outcome.Key.String(), "error", err.Error())
	}
}
