package history

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO builds`).
		WithArgs("bld-1", "catalog-api:latest", "sha256:abc", "recdigest", "mandigest",
			StatusSucceeded, int64(42000), now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ledger.Insert(context.Background(), &Record{
		BuildID:        "bld-1",
		ImageRef:       "catalog-api:latest",
		ImageID:        "sha256:abc",
		RecipeDigest:   "recdigest",
		ManifestDigest: "mandigest",
		Status:         StatusSucceeded,
		Duration:       42 * time.Second,
		CreatedAt:      now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDefaultsCreatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)

	mock.ExpectExec(`INSERT INTO builds`).
		WithArgs("bld-2", "app:v1", "", "r", "m", StatusFailed, int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &Record{
		BuildID:        "bld-2",
		ImageRef:       "app:v1",
		RecipeDigest:   "r",
		ManifestDigest: "m",
		Status:         StatusFailed,
	}
	require.NoError(t, ledger.Insert(context.Background(), rec))
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)
	now := time.Now().UTC()

	columns := []string{"build_id", "image_ref", "image_id", "recipe_digest",
		"manifest_digest", "status", "duration_ms", "created_at"}
	mock.ExpectQuery(`FROM builds ORDER BY id DESC LIMIT`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("bld-2", "app:v2", "sha256:def", "r2", "m2", StatusFailed, int64(1500), now).
			AddRow("bld-1", "app:v1", "sha256:abc", "r1", "m1", StatusSucceeded, int64(42000), now))

	records, err := ledger.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "bld-2", records[0].BuildID)
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.Equal(t, 1500*time.Millisecond, records[0].Duration)
	assert.Equal(t, "bld-1", records[1].BuildID)
	assert.Equal(t, 42*time.Second, records[1].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDefaultLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)

	columns := []string{"build_id", "image_ref", "image_id", "recipe_digest",
		"manifest_digest", "status", "duration_ms", "created_at"}
	mock.ExpectQuery(`FROM builds ORDER BY id DESC LIMIT`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(columns))

	records, err := ledger.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastWithInputs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)
	now := time.Now().UTC()

	columns := []string{"build_id", "image_ref", "image_id", "recipe_digest",
		"manifest_digest", "status", "duration_ms", "created_at"}
	mock.ExpectQuery(`WHERE recipe_digest = \? AND manifest_digest = \? AND status = \?`).
		WithArgs("r1", "m1", StatusSucceeded).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("bld-1", "app:v1", "sha256:abc", "r1", "m1", StatusSucceeded, int64(30000), now))

	rec, err := ledger.LastWithInputs(context.Background(), "r1", "m1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sha256:abc", rec.ImageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastWithInputsNoPriorBuild(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)

	columns := []string{"build_id", "image_ref", "image_id", "recipe_digest",
		"manifest_digest", "status", "duration_ms", "created_at"}
	mock.ExpectQuery(`WHERE recipe_digest = \?`).
		WithArgs("r9", "m9", StatusSucceeded).
		WillReturnRows(sqlmock.NewRows(columns))

	rec, err := ledger.LastWithInputs(context.Background(), "r9", "m9")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}
