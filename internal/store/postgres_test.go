package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negros-cram/brrs/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock, nil), mock
}

func TestPostgresStore_Migrate_AppliesPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("001_init.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_SkipsApplied(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_init.sql"))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_LockError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMunicipality_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM municipalities m WHERE m.id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetMunicipality(context.Background(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LinkBarangays_SortedInTx(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE barangays SET municipality_id = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(int64(10), pgxmock.AnyArg(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE barangays SET municipality_id`).
		WithArgs(int64(20), pgxmock.AnyArg(), int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := s.LinkBarangays(context.Background(), map[int64]int64{2: 20, 1: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LinkBarangays_RollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE barangays SET municipality_id`).
		WithArgs(int64(10), pgxmock.AnyArg(), int64(1)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.LinkBarangays(context.Background(), map[int64]int64{1: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link barangay 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertScores_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{
		"barangay_id", "hazard_exposure_score", "health_sensitivity_score", "adaptive_capacity_score",
		"flood_risk_score", "landslide_risk_score", "storm_surge_risk_score", "liquefaction_risk_score",
		"population_density_score", "air_quality_score",
		"overall_score", "risk_level", "data_completeness", "calculated_at",
	}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_resilience_scores"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_resilience_scores"}, cols).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "resilience_scores" .* ON CONFLICT \("barangay_id"\) DO UPDATE SET .*"updated_at" = now\(\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.UpsertScores(context.Background(), []model.ResilienceScore{{
		BarangayID: 1, HazardExposure: 50, HealthSensitivity: 50, AdaptiveCapacity: 50,
		Overall: 50, RiskLevel: model.RiskMedium, CalculatedAt: time.Now(),
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceClassRecords_DeletesScope(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "hazard_class_records" WHERE hazard_type = \$1 AND period = \$2`).
		WithArgs("flood", "25yr").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectCommit()

	n, err := s.ReplaceClassRecords(context.Background(), model.HazardFlood, model.PeriodFlood25, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, kind, subject, status, .* FROM score_runs ORDER BY started_at DESC, id LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "subject", "status", "processed", "skipped", "errored", "error", "started_at", "finished_at"}).
			AddRow("r1", "score", "", "complete", 10, 0, 0, "", started, (*time.Time)(nil)))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunKindScore, runs[0].Kind)
	assert.Equal(t, 10, runs[0].Processed)
	assert.Nil(t, runs[0].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Tile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT ST_AsMVT\(q, 'barangays', 4096, 'geom'\) FROM \(SELECT b.id`).
		WithArgs(10, 870, 490).
		WillReturnRows(pgxmock.NewRows([]string{"st_asmvt"}).AddRow([]byte{0x1a, 0x02}))

	tile, err := s.Tile(context.Background(), "barangays", 10, 870, 490)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1a, 0x02}, tile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Tile_UnknownLayer(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.Tile(context.Background(), "pg_catalog.pg_user", 1, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tile layer")
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	s := newPostgresStore(mock, func() { closed = true })
	require.NoError(t, s.Close())
	assert.True(t, closed)
}
