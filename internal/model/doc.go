// Package model defines the persisted document types shared by the manager,
// workers and reconciler: portal credentials, causas, folders, run records and
// worker configuration. Documents carry bson tags for the mongo store and json
// tags for snapshots and logging.
//
// Ownership relations are many-to-many and represented as sets keyed by stable
// ids (LinkedCredentials, FolderIDs, ExcludedCausas) so that link/unlink
// operations stay idempotent.
package model
