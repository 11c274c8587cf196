package portal

import (
	"context"
	"sync"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
)

// Fake is a scripted portal for tests. Populate Listings and Movements per
// credential, and use the error fields to script failures.
type Fake struct {
	mu sync.Mutex

	// Listings maps credential id to its full case listing. ListCausas
	// serves it in pages of PageSize.
	Listings map[string][]CaseSummary

	// Movements maps a causa key string to the movements FetchMovimientos
	// returns for it.
	Movements map[string][]Movimiento

	// PageSize is the listing page size. Defaults to 50.
	PageSize int

	// AuthFail lists credential ids whose login is rejected.
	AuthFail map[string]bool

	// DownFueros lists jurisdictions whose movement fetches fail with
	// ErrJurisdictionUnavailable.
	DownFueros map[string]bool

	// FailMovementsFor makes FetchMovimientos fail once with a timeout
	// for the given key strings.
	FailMovementsFor map[string]bool

	// Logins counts Login calls per credential.
	Logins map[string]int
}

var _ Client = (*Fake)(nil)

// NewFake creates an empty scripted portal.
func NewFake() *Fake {
	return &Fake{
		Listings:         make(map[string][]CaseSummary),
		Movements:        make(map[string][]Movimiento),
		PageSize:         50,
		AuthFail:         make(map[string]bool),
		DownFueros:       make(map[string]bool),
		FailMovementsFor: make(map[string]bool),
		Logins:           make(map[string]int),
	}
}

func (f *Fake) Login(ctx context.Context, credentialID string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Logins[credentialID]++
	if f.AuthFail[credentialID] {
		return nil, errors.NewPortalError("login rejected", errors.ErrAuthFailed).WithCredential(credentialID)
	}
	return &fakeSession{fake: f, credentialID: credentialID}, nil
}

type fakeSession struct {
	fake         *Fake
	credentialID string
}

func (s *fakeSession) ListCausas(ctx context.Context, page int) (*Page, error) {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()

	listing := s.fake.Listings[s.credentialID]
	size := s.fake.PageSize
	if size <= 0 {
		size = 50
	}

	start := page * size
	if start >= len(listing) {
		return &Page{Total: len(listing), HasNext: false}, nil
	}
	end := start + size
	if end > len(listing) {
		end = len(listing)
	}
	return &Page{
		Cases:   append([]CaseSummary(nil), listing[start:end]...),
		Total:   len(listing),
		HasNext: end < len(listing),
	}, nil
}

func (s *fakeSession) FetchMovimientos(ctx context.Context, key model.CausaKey) ([]Movimiento, error) {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()

	if s.fake.DownFueros[key.Fuero] {
		return nil, errors.NewPortalError("movements fetch", errors.ErrJurisdictionUnavailable).
			WithCredential(s.credentialID).WithFuero(key.Fuero)
	}
	ks := key.String()
	if s.fake.FailMovementsFor[ks] {
		delete(s.fake.FailMovementsFor, ks)
		return nil, errors.NewPortalError("movements fetch", errors.ErrPortalTimeout).
			WithCredential(s.credentialID).WithFuero(key.Fuero)
	}
	movs, ok := s.fake.Movements[ks]
	if !ok {
		return nil, errors.NewPortalError("movements fetch", errors.ErrCausaNotFound).
			WithCredential(s.credentialID).WithFuero(key.Fuero)
	}
	return append([]Movimiento(nil), movs...), nil
}

func (s *fakeSession) Close(ctx context.Context) error { return nil }
