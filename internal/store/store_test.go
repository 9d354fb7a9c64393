package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"bench_bot/internal/config"
)

func TestNewManagerConnectsAndExposesCollections(t *testing.T) {
	fake := newFakeMongoClient(t)
	restore := stubConnect(fake, nil)
	t.Cleanup(restore)

	cfg := config.Config{
		MongoURI: "mongodb://stub-host:27017",
		MongoDB:  "bench_bot_test",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	manager, err := NewManager(ctx, cfg)
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	if manager.Database().Name() != cfg.MongoDB {
		t.Fatalf("expected database %s, got %s", cfg.MongoDB, manager.Database().Name())
	}

	if len(fake.databaseRequests) != 1 || fake.databaseRequests[0] != cfg.MongoDB {
		t.Fatalf("expected database request for %s, got %v", cfg.MongoDB, fake.databaseRequests)
	}

	if manager.Benches().Name() != CollectionBenches {
		t.Fatalf("expected benches collection name %s, got %s", CollectionBenches, manager.Benches().Name())
	}

	if manager.Locations().Name() != CollectionLocations {
		t.Fatalf("expected locations collection name %s, got %s", CollectionLocations, manager.Locations().Name())
	}

	if err := manager.Close(ctx); err != nil {
		t.Fatalf("expected clean disconnect, got %v", err)
	}

	if !fake.disconnectCalled {
		t.Fatalf("expected disconnect to be called")
	}
}

func TestNewManagerFailsOnPingAndCleansUp(t *testing.T) {
	fake := newFakeMongoClient(t)
	fake.pingErr = errors.New("ping failed")

	restore := stubConnect(fake, nil)
	t.Cleanup(restore)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewManager(ctx, config.Config{MongoURI: "mongodb://stub", MongoDB: "bench_bot_test"})
	if err == nil {
		t.Fatalf("expected ping error")
	}

	if !fake.disconnectCalled {
		t.Fatalf("expected disconnect after ping failure")
	}
}

func TestNewManagerPropagatesConnectError(t *testing.T) {
	restore := stubConnect(nil, errors.New("connect failed"))
	t.Cleanup(restore)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewManager(ctx, config.Config{MongoURI: "mongodb://stub", MongoDB: "bench_bot_test"})
	if err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestManagerPingChecksConnectivity(t *testing.T) {
	fake := newFakeMongoClient(t)
	restore := stubConnect(fake, nil)
	t.Cleanup(restore)

	manager, err := NewManager(context.Background(), config.Config{MongoURI: "mongodb://stub", MongoDB: "bench_bot_test"})
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := manager.Ping(ctx); err != nil {
		t.Fatalf("expected ping to succeed, got error: %v", err)
	}

	if fake.pingCalls < 2 {
		t.Fatalf("expected ping to be invoked at least twice (init + explicit), got %d", fake.pingCalls)
	}
	if fake.lastReadPref != "primary" {
		t.Fatalf("expected ping to use primary read preference, got %q", fake.lastReadPref)
	}
}

func TestManagerPingPropagatesErrors(t *testing.T) {
	fake := newFakeMongoClient(t)
	restore := stubConnect(fake, nil)
	t.Cleanup(restore)

	manager, err := NewManager(context.Background(), config.Config{MongoURI: "mongodb://stub", MongoDB: "bench_bot_test"})
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	errPing := errors.New("ping failed")
	fake.pingErr = errPing

	if err := manager.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail")
	} else if !errors.Is(err, errPing) {
		t.Fatalf("expected ping error to wrap ping failed, got %v", err)
	}
}

func TestEnsureBaseIndexes(t *testing.T) {
	fake := newFakeMongoClient(t)
	restoreConnect := stubConnect(fake, nil)
	t.Cleanup(restoreConnect)

	manager, err := NewManager(context.Background(), config.Config{MongoURI: "mongodb://stub", MongoDB: "bench_bot_test"})
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	recorder := newIndexRecorder(t, "")
	restoreIndexes := recorder.stub()
	t.Cleanup(restoreIndexes)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := manager.EnsureBaseIndexes(ctx); err != nil {
		t.Fatalf("expected indexes to be created, got error: %v", err)
	}

	if len(recorder.calls) != 2 {
		t.Fatalf("expected 2 index creation calls, got %d", len(recorder.calls))
	}

	benchCall := recorder.calls[0]
	if benchCall.collection != CollectionBenches {
		t.Fatalf("expected first collection %s, got %s", CollectionBenches, benchCall.collection)
	}
	assertUniqueIndex(t, benchCall.models, "chat_id", "chat_id_unique")

	locationCall := recorder.calls[1]
	if locationCall.collection != CollectionLocations {
		t.Fatalf("expected second collection %s, got %s", CollectionLocations, locationCall.collection)
	}
	assertLatestLookupIndex(t, locationCall.models)
}

func TestEnsureBaseIndexesFailsFastOnErrors(t *testing.T) {
	fake := newFakeMongoClient(t)
	restoreConnect := stubConnect(fake, nil)
	t.Cleanup(restoreConnect)

	manager, err := NewManager(context.Background(), config.Config{MongoURI: "mongodb://stub", MongoDB: "bench_bot_test"})
	if err != nil {
		t.Fatalf("expected manager to initialize, got error: %v", err)
	}

	recorder := newIndexRecorder(t, CollectionBenches)
	restoreIndexes := recorder.stub()
	t.Cleanup(restoreIndexes)

	err = manager.EnsureBaseIndexes(context.Background())
	if err == nil {
		t.Fatalf("expected error from index creation")
	}
	if len(recorder.calls) != 1 {
		t.Fatalf("expected to stop after first failure, got %d calls", len(recorder.calls))
	}
	if !errors.Is(err, errIndexFailure) {
		t.Fatalf("expected error to wrap index failure, got %v", err)
	}
}

func TestStatsProviderCounts(t *testing.T) {
	benches := &fakeCountCollection{count: 3}
	locations := &fakeCountCollection{count: 12}
	provider := NewStatsProvider(benches, locations)

	ctx := context.Background()

	benchCount, err := provider.CountBenches(ctx)
	if err != nil {
		t.Fatalf("CountBenches returned error: %v", err)
	}
	if benchCount != 3 {
		t.Fatalf("expected 3 benches, got %d", benchCount)
	}

	locationCount, err := provider.CountLocations(ctx)
	if err != nil {
		t.Fatalf("CountLocations returned error: %v", err)
	}
	if locationCount != 12 {
		t.Fatalf("expected 12 locations, got %d", locationCount)
	}
}

func TestStatsProviderPropagatesErrors(t *testing.T) {
	errCount := errors.New("count failed")
	provider := NewStatsProvider(&fakeCountCollection{err: errCount}, &fakeCountCollection{})

	if _, err := provider.CountBenches(context.Background()); !errors.Is(err, errCount) {
		t.Fatalf("expected count error, got %v", err)
	}
}

type fakeMongoClient struct {
	client           *mongo.Client
	pingErr          error
	disconnectErr    error
	disconnectCalled bool
	databaseRequests []string
	pingCalls        int
	lastReadPref     string
}

func newFakeMongoClient(t *testing.T) *fakeMongoClient {
	t.Helper()

	client, err := mongo.NewClient(options.Client().ApplyURI("mongodb://example.com:27017"))
	if err != nil {
		t.Fatalf("failed to build fake client: %v", err)
	}

	return &fakeMongoClient{client: client}
}

func (f *fakeMongoClient) Ping(_ context.Context, rp *readpref.ReadPref) error {
	f.pingCalls++
	if rp != nil {
		f.lastReadPref = rp.String()
	}
	return f.pingErr
}

func (f *fakeMongoClient) Database(name string, opts ...*options.DatabaseOptions) *mongo.Database {
	f.databaseRequests = append(f.databaseRequests, name)
	return f.client.Database(name, opts...)
}

func (f *fakeMongoClient) Disconnect(context.Context) error {
	f.disconnectCalled = true
	return f.disconnectErr
}

type fakeCountCollection struct {
	count int64
	err   error
}

func (f *fakeCountCollection) CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error) {
	return f.count, f.err
}

func stubConnect(fake mongoClient, err error) func() {
	prev := connectMongo
	connectMongo = func(context.Context, *options.ClientOptions) (mongoClient, error) {
		return fake, err
	}

	return func() {
		connectMongo = prev
	}
}

var errIndexFailure = errors.New("index failure")

type indexCall struct {
	collection string
	models     []mongo.IndexModel
}

type indexRecorder struct {
	t               *testing.T
	calls           []indexCall
	errorCollection string
}

func newIndexRecorder(t *testing.T, errorCollection string) *indexRecorder {
	t.Helper()
	return &indexRecorder{t: t, errorCollection: errorCollection}
}

func (r *indexRecorder) stub() func() {
	prev := createIndexes
	createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
		r.calls = append(r.calls, indexCall{collection: coll.Name(), models: models})
		if r.errorCollection == coll.Name() {
			return nil, errIndexFailure
		}
		return []string{coll.Name() + "_idx"}, nil
	}

	return func() {
		createIndexes = prev
	}
}

func assertUniqueIndex(t *testing.T, models []mongo.IndexModel, key, name string) {
	t.Helper()

	if len(models) != 1 {
		t.Fatalf("expected 1 index model, got %d", len(models))
	}

	keysDoc, ok := models[0].Keys.(bson.D)
	if !ok {
		t.Fatalf("expected bson.D keys, got %T", models[0].Keys)
	}

	if len(keysDoc) != 1 || keysDoc[0].Key != key {
		t.Fatalf("expected index key %s, got %v", key, keysDoc)
	}

	if models[0].Options == nil || models[0].Options.Unique == nil || !*models[0].Options.Unique {
		t.Fatalf("expected unique option for %s", key)
	}

	if models[0].Options.Name == nil || *models[0].Options.Name != name {
		t.Fatalf("expected index name %s, got %v", name, models[0].Options.Name)
	}
}

func assertLatestLookupIndex(t *testing.T, models []mongo.IndexModel) {
	t.Helper()

	if len(models) != 1 {
		t.Fatalf("expected 1 index model, got %d", len(models))
	}

	keysDoc, ok := models[0].Keys.(bson.D)
	if !ok {
		t.Fatalf("expected bson.D keys, got %T", models[0].Keys)
	}

	if len(keysDoc) != 2 || keysDoc[0].Key != "chat_id" || keysDoc[1].Key != "date" {
		t.Fatalf("expected compound chat_id/date keys, got %v", keysDoc)
	}

	if direction, ok := keysDoc[1].Value.(int); !ok || direction != -1 {
		t.Fatalf("expected descending date key, got %v", keysDoc[1].Value)
	}

	if models[0].Options == nil || models[0].Options.Name == nil || *models[0].Options.Name != "chat_id_date_desc" {
		t.Fatalf("expected index name chat_id_date_desc, got %+v", models[0].Options)
	}
}
