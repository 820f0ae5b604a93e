package tabular

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagedomain "github.com/lakekeeper/catalog/internal/domain/storage"
	domaintabular "github.com/lakekeeper/catalog/internal/domain/tabular"
	"github.com/lakekeeper/catalog/internal/errs"
)

// fakeStore implements Store with plain maps, letting each test drive the
// Find/FindByName/overlap outcomes the engine branches on without a real
// database; the *sql.Tx the engine threads through comes from a genuine
// sqlmock-backed *sql.DB so transaction begin/commit/rollback still run
// through real database/sql bookkeeping.
type fakeStore struct {
	byID   map[string]*domaintabular.Tabular
	byName map[string]*domaintabular.Tabular

	overlapErr error

	renamedID              string
	renamedName            string
	renamedDestNamespaceID *string
	advisoryLockKeys       []string

	createCalled bool
	updateCalled bool
	updatedID    string
}

func nameKey(namespaceID, name string) string { return namespaceID + "/" + name }

func (f *fakeStore) Create(_ context.Context, _ *sql.Tx, t *domaintabular.Tabular) (*domaintabular.Tabular, error) {
	f.createCalled = true
	return t, nil
}

func (f *fakeStore) Update(_ context.Context, _ *sql.Tx, t *domaintabular.Tabular) (*domaintabular.Tabular, error) {
	f.updateCalled = true
	f.updatedID = t.ID
	return t, nil
}

func (f *fakeStore) Find(_ context.Context, id string, _ bool) (*domaintabular.Tabular, error) {
	if t, ok := f.byID[id]; ok {
		return t, nil
	}

	return nil, errs.NewNotFound("tabular", "", nil)
}

func (f *fakeStore) FindByName(_ context.Context, namespaceID, name string, _, _ bool) (*domaintabular.Tabular, error) {
	if t, ok := f.byName[nameKey(namespaceID, name)]; ok {
		return t, nil
	}

	return nil, errs.NewNotFound("tabular", "", nil)
}

func (f *fakeStore) LockForUpdate(ctx context.Context, _ *sql.Tx, id string) (*domaintabular.Tabular, error) {
	return f.Find(ctx, id, true)
}

func (f *fakeStore) ListByNamespace(context.Context, string, domaintabular.ListFlags, int, string) ([]*domaintabular.Tabular, string, error) {
	return nil, "", nil
}

func (f *fakeStore) Search(context.Context, string, string, int) ([]*domaintabular.Tabular, error) {
	return nil, nil
}

func (f *fakeStore) Rename(_ context.Context, _ *sql.Tx, id, name string, destNamespaceID *string) error {
	f.renamedID = id
	f.renamedName = name
	f.renamedDestNamespaceID = destNamespaceID

	return nil
}

func (f *fakeStore) CommitBatch(context.Context, *sql.Tx, []domaintabular.TableCommit) error { return nil }

func (f *fakeStore) SoftDelete(context.Context, *sql.Tx, string, string) error { return nil }

func (f *fakeStore) Undrop(context.Context, *sql.Tx, string) (string, error) { return "", nil }

func (f *fakeStore) Purge(context.Context, *sql.Tx, string) error { return nil }

func (f *fakeStore) SetProtected(context.Context, *sql.Tx, string, bool) error { return nil }

func (f *fakeStore) CheckLocationOverlap(context.Context, *sql.Tx, string, string, string) error {
	return f.overlapErr
}

func (f *fakeStore) AdvisoryLock(_ context.Context, _ *sql.Tx, key string) error {
	f.advisoryLockKeys = append(f.advisoryLockKeys, key)
	return nil
}

// fakeProfile is a no-op storage.Profile that allows every location.
type fakeProfile struct{}

func (fakeProfile) BaseLocation() string { return "s3://bucket" }

func (fakeProfile) DefaultNamespaceLocation(namespaceID string) string {
	return "s3://bucket/" + namespaceID
}

func (fakeProfile) DefaultTabularLocation(namespaceLocation, tabularID string) string {
	return namespaceLocation + "/" + tabularID
}

func (fakeProfile) DefaultMetadataLocation(tabularLocation, _, _ string, _ int) string {
	return tabularLocation + "/metadata"
}

func (fakeProfile) IsAllowedLocation(string) bool { return true }

func (fakeProfile) GenerateTableConfig(context.Context, storagedomain.Permissions, string) (storagedomain.ClientConfig, *storagedomain.Credential, error) {
	return nil, nil, nil
}

func (fakeProfile) ValidateAccess(context.Context, string) error { return nil }

func newTestEngine(t *testing.T, store *fakeStore) (*Engine, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	engine := NewEngine(db, store, nil, true, time.Hour)

	return engine, mock, func() { db.Close() }
}

func TestCreate_RejectsOverlappingLocation(t *testing.T) {
	store := &fakeStore{
		byName:     map[string]*domaintabular.Tabular{},
		overlapErr: errs.NewConflict("tabular", "location overlaps with an existing tabular's location", nil),
	}
	engine, mock, closeDB := newTestEngine(t, store)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := engine.Create(context.Background(), "wh-1", "ns-1", fakeProfile{}, domaintabular.CreateTabularInput{
		Identifier: domaintabular.Identifier{Name: "t1"},
		Location:   "s3://bucket/ns-1/t1",
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_SetsWarehouseIDAndCommits(t *testing.T) {
	store := &fakeStore{byName: map[string]*domaintabular.Tabular{}}
	engine, mock, closeDB := newTestEngine(t, store)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectCommit()

	created, err := engine.Create(context.Background(), "wh-1", "ns-1", fakeProfile{}, domaintabular.CreateTabularInput{
		Identifier: domaintabular.Identifier{Name: "t1"},
		Location:   "s3://bucket/ns-1/t1",
	})

	require.NoError(t, err)
	assert.Equal(t, "wh-1", created.WarehouseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_OverwritesExistingStagedRowInPlace(t *testing.T) {
	store := &fakeStore{
		byName: map[string]*domaintabular.Tabular{
			nameKey("ns-1", "t1"): {ID: "staged-1", NamespaceID: "ns-1", Name: "t1"},
		},
	}
	engine, mock, closeDB := newTestEngine(t, store)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectCommit()

	created, err := engine.Create(context.Background(), "wh-1", "ns-1", fakeProfile{}, domaintabular.CreateTabularInput{
		Identifier: domaintabular.Identifier{Name: "t1"},
		Location:   "s3://bucket/ns-1/t1",
		Staged:     true,
	})

	require.NoError(t, err)
	assert.Equal(t, "staged-1", created.ID)
	assert.True(t, store.updateCalled)
	assert.False(t, store.createCalled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRename_RejectsSoftDeletedSource(t *testing.T) {
	deletedAt := time.Now()
	store := &fakeStore{
		byID: map[string]*domaintabular.Tabular{
			"tbl-1": {ID: "tbl-1", NamespaceID: "ns-1", DeletedAt: &deletedAt},
		},
	}
	engine, mock, closeDB := newTestEngine(t, store)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := engine.Rename(context.Background(), domaintabular.RenameInput{SourceID: "tbl-1", DestName: "t2"})

	require.Error(t, err)
	_, ok := err.(errs.BadRequestError)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRename_RejectsStagedSource(t *testing.T) {
	store := &fakeStore{
		byID: map[string]*domaintabular.Tabular{
			"tbl-1": {ID: "tbl-1", NamespaceID: "ns-1"},
		},
	}
	engine, mock, closeDB := newTestEngine(t, store)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := engine.Rename(context.Background(), domaintabular.RenameInput{SourceID: "tbl-1", DestName: "t2"})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRename_RejectsDestinationCollision(t *testing.T) {
	metaLoc := "s3://bucket/ns-1/tbl-1/metadata/00001.json"
	store := &fakeStore{
		byID: map[string]*domaintabular.Tabular{
			"tbl-1": {ID: "tbl-1", NamespaceID: "ns-1", MetadataLocation: &metaLoc},
		},
		byName: map[string]*domaintabular.Tabular{
			nameKey("ns-1", "t2"): {ID: "tbl-2", NamespaceID: "ns-1"},
		},
	}
	engine, mock, closeDB := newTestEngine(t, store)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := engine.Rename(context.Background(), domaintabular.RenameInput{SourceID: "tbl-1", DestName: "t2"})

	require.Error(t, err)
	_, ok := err.(errs.ConflictError)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRename_CrossNamespace_AcquiresAdvisoryLockAndCommits(t *testing.T) {
	metaLoc := "s3://bucket/ns-1/tbl-1/metadata/00001.json"
	destNS := "ns-2"
	store := &fakeStore{
		byID: map[string]*domaintabular.Tabular{
			"tbl-1": {ID: "tbl-1", NamespaceID: "ns-1", MetadataLocation: &metaLoc},
		},
		byName: map[string]*domaintabular.Tabular{},
	}
	engine, mock, closeDB := newTestEngine(t, store)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := engine.Rename(context.Background(), domaintabular.RenameInput{
		SourceID: "tbl-1", DestName: "t2", DestNamespaceID: &destNS,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"ns-2"}, store.advisoryLockKeys)
	assert.Equal(t, "t2", store.renamedName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
