// Package portal defines the contract with the external case-management
// portal. The real automation against the portal lives outside this module;
// the worker only depends on this interface, plus the typed error conditions
// it needs to distinguish: a jurisdiction-wide outage is not the same thing
// as a single case missing from the listing.
package portal

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// CaseSummary is one row of the portal's case listing.
type CaseSummary struct {
	Key      model.CausaKey
	Caratula string
	// LastMovimiento is the portal's reported date of the newest movement,
	// when the listing exposes it. Zero otherwise.
	LastMovimiento time.Time
}

// Page is one page of a case listing.
type Page struct {
	Cases []CaseSummary
	// Total is the portal's reported total case count for the credential,
	// as shown on every page.
	Total int
	// HasNext reports whether another page follows.
	HasNext bool
}

// Movimiento is one movement entry as fetched from the portal.
type Movimiento struct {
	Key   string
	Date  time.Time
	Title string
	Court string
}

// Session is an authenticated portal session for one credential. Sessions
// are not safe for concurrent use; the worker processes one credential's
// cases sequentially.
type Session interface {
	// ListCausas fetches one page of the credential's case listing.
	// Pages are numbered from 0.
	ListCausas(ctx context.Context, page int) (*Page, error)

	// FetchMovimientos fetches the full movement list for one case.
	// Returns errors.ErrCausaNotFound when the portal no longer lists the
	// case, and errors.ErrJurisdictionUnavailable when the case's fuero
	// is down as a whole.
	FetchMovimientos(ctx context.Context, key model.CausaKey) ([]Movimiento, error)

	// Close releases the session.
	Close(ctx context.Context) error
}

// Client logs credentials into the portal.
type Client interface {
	// Login opens a session for the credential. Returns
	// errors.ErrAuthFailed when the portal rejects it.
	Login(ctx context.Context, credentialID string) (Session, error)
}
