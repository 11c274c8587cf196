package model

import (
	"fmt"
	"time"
)

// Source records where a causa or folder came from.
type Source string

const (
	// SourceSync marks documents created by the synchronization system.
	SourceSync Source = "sync"
	// SourceManual marks documents created by hand in the console.
	SourceManual Source = "manual"
	// SourceSearch marks causas found through the external-search flow.
	SourceSearch Source = "search"
	// SourceCache marks causas imported from a cached listing.
	SourceCache Source = "cache"
	// SourceUser marks folders created directly by a user.
	SourceUser Source = "user"
)

// CausaKey is the natural key of a judicial case, independent of any
// internal id: jurisdiction (fuero), case number, year and an optional
// incident number.
type CausaKey struct {
	Fuero    string `bson:"fuero" json:"fuero"`
	Number   int    `bson:"number" json:"number"`
	Year     int    `bson:"year" json:"year"`
	Incident string `bson:"incident,omitempty" json:"incident,omitempty"`
}

// String returns the canonical form of the key, used for set membership
// in exclusion lists and scan results.
func (k CausaKey) String() string {
	if k.Incident != "" {
		return fmt.Sprintf("%s-%d-%d-%s", k.Fuero, k.Number, k.Year, k.Incident)
	}
	return fmt.Sprintf("%s-%d-%d", k.Fuero, k.Number, k.Year)
}

// IsZero reports whether the key is unset.
func (k CausaKey) IsZero() bool {
	return k.Fuero == "" && k.Number == 0 && k.Year == 0
}

// Movimiento is one procedural entry in a causa's history.
type Movimiento struct {
	Key   string    `bson:"key" json:"key"`
	Date  time.Time `bson:"date" json:"date"`
	Title string    `bson:"title" json:"title"`
	Court string    `bson:"court,omitempty" json:"court,omitempty"`
}

// Causa is one judicial case, possibly shared across users. A causa may
// exist with zero linked credentials (orphan) or zero folders.
type Causa struct {
	ID       string   `bson:"_id,omitempty" json:"id"`
	Key      CausaKey `bson:"key" json:"key"`
	Caratula string   `bson:"caratula,omitempty" json:"caratula,omitempty"`

	// Source is set at creation and never changed by the reconciler.
	Source Source `bson:"source" json:"source"`

	// LinkedCredentials is the set of credential ids that observed or own
	// this causa. Membership is by credential id.
	LinkedCredentials []string `bson:"linkedCredentials" json:"linkedCredentials"`

	// FolderIDs holds back-references to every folder pointing at this
	// causa, across all owning users.
	FolderIDs []string `bson:"folderIds" json:"folderIds"`

	Movimientos []Movimiento `bson:"movimientos,omitempty" json:"movimientos,omitempty"`
	LastUpdate  time.Time    `bson:"lastUpdate,omitempty" json:"lastUpdate,omitempty"`
	CreatedAt   time.Time    `bson:"createdAt" json:"createdAt"`
}

// HasCredential reports whether the credential is in the linked set.
func (c *Causa) HasCredential(credentialID string) bool {
	return inSet(c.LinkedCredentials, credentialID)
}

// LinkCredential adds the credential to the linked set. Idempotent.
func (c *Causa) LinkCredential(credentialID string) {
	c.LinkedCredentials = addToSet(c.LinkedCredentials, credentialID)
}

// UnlinkCredential removes the credential from the linked set.
func (c *Causa) UnlinkCredential(credentialID string) {
	c.LinkedCredentials = removeFromSet(c.LinkedCredentials, credentialID)
}

// MovimientoKeys returns the set of stored movement keys, for diffing a
// fetched movement list against what is already known.
func (c *Causa) MovimientoKeys() map[string]bool {
	keys := make(map[string]bool, len(c.Movimientos))
	for _, m := range c.Movimientos {
		keys[m.Key] = true
	}
	return keys
}

// Folder is a single user's handle onto a causa. Never shared between
// users; a user may hold folders that point at no causa yet.
type Folder struct {
	ID     string `bson:"_id,omitempty" json:"id"`
	UserID string `bson:"userId" json:"userId"`

	// Source distinguishes sync-created folders from user-created ones.
	// Only sync-created folders participate in pjnNotFound reconciliation.
	Source Source `bson:"source" json:"source"`

	// CausaID links to the backing causa. May be empty for user-created
	// folders that predate the causa record.
	CausaID string   `bson:"causaId,omitempty" json:"causaId,omitempty"`
	Key     CausaKey `bson:"key" json:"key"`

	// PJNNotFound is set when a complete portal scan no longer lists the
	// case while the folder is still active. Only full scans may toggle it.
	PJNNotFound bool `bson:"pjnNotFound" json:"pjnNotFound"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func inSet(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func addToSet(set []string, v string) []string {
	if inSet(set, v) {
		return set
	}
	return append(set, v)
}

func removeFromSet(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
