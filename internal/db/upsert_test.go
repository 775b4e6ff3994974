package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "barangays",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "barangays",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "barangays",
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_resilience_scores"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_resilience_scores"}, []string{"barangay_id", "overall_score"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "resilience_scores" .* ON CONFLICT \("barangay_id"\) DO UPDATE SET "overall_score" = EXCLUDED."overall_score", "updated_at" = now\(\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "resilience_scores",
		Columns:      []string{"barangay_id", "overall_score"},
		ConflictKeys: []string{"barangay_id"},
		Touch:        "updated_at",
	}, [][]any{{int64(1), 40.0}, {int64(2), 55.5}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_ReplaceScopeRunsFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "hazard_class_records" WHERE hazard_type = \$1 AND period = \$2`).
		WithArgs("flood", "25yr").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_hazard_class_records"}, []string{"barangay_id", "hazard_type", "period"}).
		WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "hazard_class_records",
		Columns:      []string{"barangay_id", "hazard_type", "period"},
		ConflictKeys: []string{"barangay_id", "hazard_type", "period"},
		Replace:      &Scope{Where: "hazard_type = $1 AND period = $2", Args: []any{"flood", "25yr"}},
	}, [][]any{{int64(1), "flood", "25yr"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_ReplaceWithNoRowsOnlyDeletes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "hazard_exposures" WHERE hazard_type = \$1`).
		WithArgs("landslide").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "hazard_exposures",
		Columns:      []string{"barangay_id", "hazard_type"},
		ConflictKeys: []string{"barangay_id", "hazard_type"},
		Replace:      &Scope{Where: "hazard_type = $1", Args: []any{"landslide"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_barangays"}, []string{"id", "name"}).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "barangays",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, [][]any{{int64(1), "Poblacion"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for barangays")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL_DoNothingWhenAllColumnsAreKeys(t *testing.T) {
	cfg := UpsertConfig{Table: "links", Columns: []string{"a", "b"}, ConflictKeys: []string{"a", "b"}}
	got := upsertSQL(cfg, "_tmp", nil)
	assert.Equal(t, `INSERT INTO "links" ("a", "b") SELECT "a", "b" FROM "_tmp" ON CONFLICT ("a", "b") DO NOTHING`, got)
}

func TestUpsertSQL_KeepCoalescesStoredValue(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "barangays",
		Columns:      []string{"name", "municipality", "population"},
		ConflictKeys: []string{"name", "municipality"},
		Keep:         []string{"population"},
	}
	got := upsertSQL(cfg, "_tmp", []string{"population"})
	assert.Contains(t, got, `"population" = COALESCE(EXCLUDED."population", "barangays"."population")`)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.barangays", `"public"."barangays"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
