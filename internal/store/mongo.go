package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
)

// Collection names.
const (
	colCredentials   = "credentials"
	colCausas        = "causas"
	colFolders       = "folders"
	colRuns          = "sync_runs"
	colManagerState  = "manager_state"
	colWorkerConfigs = "worker_configs"
	colGlobalConfig  = "global_config"
)

// Singleton document ids.
const (
	managerStateID = "manager"
	globalConfigID = "global"
)

// Mongo is the production Store backed by a MongoDB database. All documents
// live in one database; the lease CAS rides on FindOneAndUpdate guards.
type Mongo struct {
	db *mongo.Database
}

var _ Store = (*Mongo)(nil)

// Connect dials MongoDB and returns a Mongo store on the named database.
func Connect(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Mongo{db: client.Database(database)}, nil
}

// NewMongo wraps an existing database handle, for callers that manage the
// client themselves.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

// Close disconnects the underlying client.
func (s *Mongo) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the eligibility queries depend on.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(colCausas).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "key.fuero", Value: 1}, {Key: "key.number", Value: 1}, {Key: "key.year", Value: 1}, {Key: "key.incident", Value: 1}}},
		{Keys: bson.D{{Key: "linkedCredentials", Value: 1}}},
		{Keys: bson.D{{Key: "lastUpdate", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create causa indexes: %w", err)
	}
	_, err = s.db.Collection(colFolders).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "causaId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "key.fuero", Value: 1}, {Key: "key.number", Value: 1}, {Key: "key.year", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create folder indexes: %w", err)
	}
	_, err = s.db.Collection(colRuns).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "credentialId", Value: 1}, {Key: "startedAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "resumeAttempts", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create run indexes: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

func (s *Mongo) GetCredential(ctx context.Context, id string) (*model.Credential, error) {
	var cred model.Credential
	err := s.db.Collection(colCredentials).FindOne(ctx, bson.M{"_id": id}).Decode(&cred)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}
	return &cred, nil
}

func (s *Mongo) PutCredential(ctx context.Context, cred *model.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	_, err := s.db.Collection(colCredentials).ReplaceOne(ctx,
		bson.M{"_id": cred.ID}, cred, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put credential %s: %w", cred.ID, err)
	}
	return nil
}

func (s *Mongo) ListCredentials(ctx context.Context, filter CredentialFilter) ([]*model.Credential, error) {
	query := bson.M{}
	if filter.Enabled != nil {
		query["enabled"] = *filter.Enabled
	}
	if filter.IsValid != nil {
		query["isValid"] = *filter.IsValid
	}
	if filter.SyncStatusNot != "" {
		query["syncStatus"] = bson.M{"$ne": filter.SyncStatusNot}
	}
	if len(filter.InitialSyncIn) > 0 {
		query["initialMovementsSync"] = bson.M{"$in": filter.InitialSyncIn}
	}

	cursor, err := s.db.Collection(colCredentials).Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	var out []*model.Credential
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return out, nil
}

// AcquireSyncLease implements the per-credential mutual exclusion described
// in the design notes: a compare-and-swap on the persisted syncStatus field,
// so the loser of a race simply finds no eligible work.
func (s *Mongo) AcquireSyncLease(ctx context.Context, id string) error {
	res := s.db.Collection(colCredentials).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "syncStatus": bson.M{"$ne": model.SyncInProgress}},
		bson.M{"$set": bson.M{"syncStatus": model.SyncInProgress}},
	)
	if res.Err() == mongo.ErrNoDocuments {
		// Either the credential is missing or another worker holds the
		// lease; disambiguate for the caller.
		if _, err := s.GetCredential(ctx, id); err != nil {
			return err
		}
		return errors.ErrCredentialLocked
	}
	if res.Err() != nil {
		return fmt.Errorf("acquire lease %s: %w", id, res.Err())
	}
	return nil
}

func (s *Mongo) ReleaseSyncLease(ctx context.Context, id string, status model.SyncStatus) error {
	return s.updateCredential(ctx, id, bson.M{"$set": bson.M{"syncStatus": status}})
}

func (s *Mongo) SetInitialSyncState(ctx context.Context, id string, state model.InitialSyncState) error {
	return s.updateCredential(ctx, id, bson.M{"$set": bson.M{"initialMovementsSync": state}})
}

func (s *Mongo) RecordRun(ctx context.Context, id, runID string, at time.Time, newMovimientos int) error {
	return s.updateCredential(ctx, id, bson.M{
		"$set": bson.M{"lastRunAt": at, "lastRunId": runID},
		"$inc": bson.M{"totalRuns": 1, "totalMovimientos": newMovimientos},
	})
}

func (s *Mongo) updateCredential(ctx context.Context, id string, update bson.M) error {
	res, err := s.db.Collection(colCredentials).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update credential %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrCredentialNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Causas
// ---------------------------------------------------------------------------

func (s *Mongo) GetCausa(ctx context.Context, id string) (*model.Causa, error) {
	var causa model.Causa
	err := s.db.Collection(colCausas).FindOne(ctx, bson.M{"_id": id}).Decode(&causa)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get causa %s: %w", id, err)
	}
	return &causa, nil
}

func (s *Mongo) FindCausaByKey(ctx context.Context, key model.CausaKey) (*model.Causa, error) {
	var causa model.Causa
	err := s.db.Collection(colCausas).FindOne(ctx, keyFilter("key", key)).Decode(&causa)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find causa %s: %w", key, err)
	}
	return &causa, nil
}

func (s *Mongo) InsertCausa(ctx context.Context, causa *model.Causa) error {
	if causa.ID == "" {
		causa.ID = uuid.NewString()
	}
	if _, err := s.db.Collection(colCausas).InsertOne(ctx, causa); err != nil {
		return fmt.Errorf("insert causa %s: %w", causa.Key, err)
	}
	return nil
}

func (s *Mongo) DeleteCausa(ctx context.Context, id string) error {
	res, err := s.db.Collection(colCausas).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete causa %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Mongo) LinkCredential(ctx context.Context, causaID, credentialID string) error {
	return s.updateCausa(ctx, causaID, bson.M{"$addToSet": bson.M{"linkedCredentials": credentialID}})
}

func (s *Mongo) UnlinkCredential(ctx context.Context, causaID, credentialID string) error {
	return s.updateCausa(ctx, causaID, bson.M{"$pull": bson.M{"linkedCredentials": credentialID}})
}

func (s *Mongo) AddFolderRef(ctx context.Context, causaID, folderID string) error {
	return s.updateCausa(ctx, causaID, bson.M{"$addToSet": bson.M{"folderIds": folderID}})
}

func (s *Mongo) RemoveFolderRef(ctx context.Context, causaID, folderID string) error {
	return s.updateCausa(ctx, causaID, bson.M{"$pull": bson.M{"folderIds": folderID}})
}

func (s *Mongo) AppendMovimientos(ctx context.Context, causaID string, movs []model.Movimiento, at time.Time) error {
	return s.updateCausa(ctx, causaID, bson.M{
		"$push": bson.M{"movimientos": bson.M{"$each": movs}},
		"$set":  bson.M{"lastUpdate": at},
	})
}

func (s *Mongo) TouchCausa(ctx context.Context, causaID string, at time.Time) error {
	return s.updateCausa(ctx, causaID, bson.M{"$set": bson.M{"lastUpdate": at}})
}

func (s *Mongo) ListCausasLinkedTo(ctx context.Context, credentialID string) ([]*model.Causa, error) {
	cursor, err := s.db.Collection(colCausas).Find(ctx,
		bson.M{"linkedCredentials": credentialID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list causas for credential %s: %w", credentialID, err)
	}
	var out []*model.Causa
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode causas: %w", err)
	}
	return out, nil
}

func (s *Mongo) updateCausa(ctx context.Context, id string, update bson.M) error {
	res, err := s.db.Collection(colCausas).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update causa %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Folders
// ---------------------------------------------------------------------------

func (s *Mongo) GetFolder(ctx context.Context, id string) (*model.Folder, error) {
	var folder model.Folder
	err := s.db.Collection(colFolders).FindOne(ctx, bson.M{"_id": id}).Decode(&folder)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder %s: %w", id, err)
	}
	return &folder, nil
}

func (s *Mongo) InsertFolder(ctx context.Context, folder *model.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	if _, err := s.db.Collection(colFolders).InsertOne(ctx, folder); err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *Mongo) UpdateFolder(ctx context.Context, folder *model.Folder) error {
	res, err := s.db.Collection(colFolders).ReplaceOne(ctx, bson.M{"_id": folder.ID}, folder)
	if err != nil {
		return fmt.Errorf("update folder %s: %w", folder.ID, err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Mongo) DeleteFolder(ctx context.Context, id string) error {
	res, err := s.db.Collection(colFolders).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete folder %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Mongo) FindFolderByCausa(ctx context.Context, userID, causaID string) (*model.Folder, error) {
	var folder model.Folder
	err := s.db.Collection(colFolders).FindOne(ctx,
		bson.M{"userId": userID, "causaId": causaID}).Decode(&folder)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find folder by causa %s: %w", causaID, err)
	}
	return &folder, nil
}

func (s *Mongo) FindFolderByKey(ctx context.Context, userID string, key model.CausaKey) (*model.Folder, error) {
	filter := keyFilter("key", key)
	filter["userId"] = userID
	var folder model.Folder
	err := s.db.Collection(colFolders).FindOne(ctx, filter).Decode(&folder)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find folder by key %s: %w", key, err)
	}
	return &folder, nil
}

func (s *Mongo) ListFoldersByUser(ctx context.Context, userID string) ([]*model.Folder, error) {
	cursor, err := s.db.Collection(colFolders).Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list folders for user %s: %w", userID, err)
	}
	var out []*model.Folder
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode folders: %w", err)
	}
	return out, nil
}

func (s *Mongo) ListUnlinkedFolders(ctx context.Context) ([]*model.Folder, error) {
	cursor, err := s.db.Collection(colFolders).Find(ctx,
		bson.M{"$or": bson.A{
			bson.M{"causaId": bson.M{"$exists": false}},
			bson.M{"causaId": ""},
		}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list unlinked folders: %w", err)
	}
	var out []*model.Folder
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode folders: %w", err)
	}
	return out, nil
}

func (s *Mongo) SetPJNNotFound(ctx context.Context, folderID string, notFound bool) error {
	res, err := s.db.Collection(colFolders).UpdateOne(ctx,
		bson.M{"_id": folderID},
		bson.M{"$set": bson.M{"pjnNotFound": notFound, "updatedAt": time.Now()}})
	if err != nil {
		return fmt.Errorf("set pjnNotFound on %s: %w", folderID, err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

func (s *Mongo) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	var run model.RunRecord
	err := s.db.Collection(colRuns).FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

func (s *Mongo) InsertRun(ctx context.Context, run *model.RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, err := s.db.Collection(colRuns).InsertOne(ctx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Mongo) UpdateRun(ctx context.Context, run *model.RunRecord) error {
	res, err := s.db.Collection(colRuns).ReplaceOne(ctx, bson.M{"_id": run.ID}, run)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrRunNotFound
	}
	return nil
}

func (s *Mongo) ResumableRuns(ctx context.Context, maxAttempts int) ([]*model.RunRecord, error) {
	cursor, err := s.db.Collection(colRuns).Find(ctx, bson.M{
		"status":         bson.M{"$in": []model.RunStatus{model.RunInProgress, model.RunError, model.RunInterrupted}},
		"resumeAttempts": bson.M{"$lt": maxAttempts},
	}, options.Find().SetSort(bson.D{{Key: "startedAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list resumable runs: %w", err)
	}
	var out []*model.RunRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	return out, nil
}

func (s *Mongo) LatestRunForCredential(ctx context.Context, credentialID string) (*model.RunRecord, error) {
	var run model.RunRecord
	err := s.db.Collection(colRuns).FindOne(ctx,
		bson.M{"credentialId": credentialID},
		options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for %s: %w", credentialID, err)
	}
	return &run, nil
}

func (s *Mongo) ListRunsForCredential(ctx context.Context, credentialID string, limit int) ([]*model.RunRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.Collection(colRuns).Find(ctx, bson.M{"credentialId": credentialID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", credentialID, err)
	}
	var out []*model.RunRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	return out, nil
}

func (s *Mongo) PruneRuns(ctx context.Context, credentialID string, keep int) (int, error) {
	// Fetch the ids to keep, then delete the rest. Two round trips, but
	// pruning runs off the hot path.
	cursor, err := s.db.Collection(colRuns).Find(ctx, bson.M{
		"credentialId": credentialID,
		"status":       bson.M{"$nin": []model.RunStatus{model.RunInProgress, model.RunError, model.RunInterrupted}},
	}, options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetSkip(int64(keep)).
		SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("find prunable runs: %w", err)
	}
	var stale []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return 0, fmt.Errorf("decode prunable runs: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	ids := make([]string, len(stale))
	for i, doc := range stale {
		ids[i] = doc.ID
	}
	res, err := s.db.Collection(colRuns).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(res.DeletedCount), nil
}

// ---------------------------------------------------------------------------
// Manager state and configuration
// ---------------------------------------------------------------------------

func (s *Mongo) LoadManagerState(ctx context.Context) (*model.ManagerState, error) {
	var state model.ManagerState
	err := s.db.Collection(colManagerState).FindOne(ctx, bson.M{"_id": managerStateID}).Decode(&state)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load manager state: %w", err)
	}
	return &state, nil
}

func (s *Mongo) SaveManagerState(ctx context.Context, state *model.ManagerState) error {
	doc := bson.M{
		"_id":                managerStateID,
		"enabled":            state.Enabled,
		"serviceAvailable":   state.ServiceAvailable,
		"maintenanceMessage": state.MaintenanceMessage,
		"isRunning":          state.IsRunning,
		"configVersion":      state.ConfigVersion,
		"lastPoll":           state.LastPoll,
		"workers":            state.Workers,
	}
	_, err := s.db.Collection(colManagerState).ReplaceOne(ctx,
		bson.M{"_id": managerStateID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save manager state: %w", err)
	}
	return nil
}

func (s *Mongo) LoadGlobalConfig(ctx context.Context) (*model.GlobalConfig, error) {
	var cfg model.GlobalConfig
	err := s.db.Collection(colGlobalConfig).FindOne(ctx, bson.M{"_id": globalConfigID}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load global config: %w", err)
	}
	return &cfg, nil
}

func (s *Mongo) SaveGlobalConfig(ctx context.Context, cfg *model.GlobalConfig) error {
	doc := bson.M{
		"_id":                globalConfigID,
		"enabled":            cfg.Enabled,
		"serviceAvailable":   cfg.ServiceAvailable,
		"maintenanceMessage": cfg.MaintenanceMessage,
	}
	_, err := s.db.Collection(colGlobalConfig).ReplaceOne(ctx,
		bson.M{"_id": globalConfigID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save global config: %w", err)
	}
	return nil
}

func (s *Mongo) ListWorkerConfigs(ctx context.Context) ([]*model.WorkerKindConfig, error) {
	cursor, err := s.db.Collection(colWorkerConfigs).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list worker configs: %w", err)
	}
	var out []*model.WorkerKindConfig
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode worker configs: %w", err)
	}
	return out, nil
}

func (s *Mongo) GetWorkerConfig(ctx context.Context, kind model.WorkerKind) (*model.WorkerKindConfig, error) {
	var cfg model.WorkerKindConfig
	err := s.db.Collection(colWorkerConfigs).FindOne(ctx, bson.M{"_id": kind}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get worker config %s: %w", kind, err)
	}
	return &cfg, nil
}

func (s *Mongo) SaveWorkerConfig(ctx context.Context, cfg *model.WorkerKindConfig) error {
	_, err := s.db.Collection(colWorkerConfigs).ReplaceOne(ctx,
		bson.M{"_id": cfg.Kind}, cfg, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save worker config %s: %w", cfg.Kind, err)
	}
	return nil
}

// keyFilter builds a bson filter matching a causa natural key embedded at
// the given field. The incident component must match exactly, including its
// absence.
func keyFilter(field string, key model.CausaKey) bson.M {
	filter := bson.M{
		field + ".fuero":  key.Fuero,
		field + ".number": key.Number,
		field + ".year":   key.Year,
	}
	if key.Incident != "" {
		filter[field+".incident"] = key.Incident
	} else {
		filter[field+".incident"] = bson.M{"$in": bson.A{nil, ""}}
	}
	return filter
}
