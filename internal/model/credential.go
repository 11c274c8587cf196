package model

import "time"

// SyncStatus is the lease field used for per-credential mutual exclusion.
// Workers acquire it with a compare-and-swap against the persisted document;
// a crash leaves it set, which is the condition the resume phase repairs.
type SyncStatus string

const (
	SyncIdle       SyncStatus = "idle"
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
)

// InitialSyncState tracks a credential's first full data pull. Empty means
// the credential has never been scheduled for one.
type InitialSyncState string

const (
	InitialSyncNone       InitialSyncState = ""
	InitialSyncPending    InitialSyncState = "pending"
	InitialSyncInProgress InitialSyncState = "in_progress"
	InitialSyncCompleted  InitialSyncState = "completed"
)

// ExcludedCausa is one entry in a credential's exclusion set: a case the
// owning user deliberately removed. Scoped per credential; exclusion by one
// user never affects another credential's view of the same case.
type ExcludedCausa struct {
	Key        CausaKey  `bson:"key" json:"key"`
	CausaType  string    `bson:"causaType,omitempty" json:"causaType,omitempty"`
	ExcludedAt time.Time `bson:"excludedAt" json:"excludedAt"`
}

// Credential identifies one external-portal account owned by one user.
// Credentials are disabled on unlinking, never hard-deleted, and re-enabled
// on re-linkage.
type Credential struct {
	ID     string `bson:"_id,omitempty" json:"id"`
	UserID string `bson:"userId" json:"userId"`

	Enabled  bool `bson:"enabled" json:"enabled"`
	Verified bool `bson:"verified" json:"verified"`
	IsValid  bool `bson:"isValid" json:"isValid"`

	SyncStatus           SyncStatus       `bson:"syncStatus" json:"syncStatus"`
	InitialMovementsSync InitialSyncState `bson:"initialMovementsSync,omitempty" json:"initialMovementsSync,omitempty"`

	ExcludedCausas []ExcludedCausa `bson:"excludedCausas,omitempty" json:"excludedCausas,omitempty"`

	LastRunAt        time.Time `bson:"lastRunAt,omitempty" json:"lastRunAt,omitempty"`
	LastRunID        string    `bson:"lastRunId,omitempty" json:"lastRunId,omitempty"`
	TotalRuns        int       `bson:"totalRuns" json:"totalRuns"`
	TotalMovimientos int       `bson:"totalMovimientos" json:"totalMovimientos"`
}

// Syncable reports whether the credential may be picked up by any phase.
func (c *Credential) Syncable() bool {
	return c.Enabled && c.IsValid
}

// NeedsInitialSync reports whether the credential is eligible for the
// initial-sync phase. An in_progress state stays eligible so an interrupted
// first pull is retried on the next invocation.
func (c *Credential) NeedsInitialSync() bool {
	return c.Syncable() &&
		(c.InitialMovementsSync == InitialSyncPending || c.InitialMovementsSync == InitialSyncInProgress)
}

// ExclusionSet returns the canonical key strings of all excluded causas,
// computed once per batch so membership tests are O(1) inside loops.
func (c *Credential) ExclusionSet() map[string]bool {
	set := make(map[string]bool, len(c.ExcludedCausas))
	for _, e := range c.ExcludedCausas {
		set[e.Key.String()] = true
	}
	return set
}

// IsExcluded reports whether the key is in the exclusion set. Prefer
// ExclusionSet when testing many keys.
func (c *Credential) IsExcluded(key CausaKey) bool {
	want := key.String()
	for _, e := range c.ExcludedCausas {
		if e.Key.String() == want {
			return true
		}
	}
	return false
}

// Exclude adds the key to the exclusion set. Idempotent.
func (c *Credential) Exclude(key CausaKey, causaType string, now time.Time) {
	if c.IsExcluded(key) {
		return
	}
	c.ExcludedCausas = append(c.ExcludedCausas, ExcludedCausa{
		Key:        key,
		CausaType:  causaType,
		ExcludedAt: now,
	})
}
