package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/negros-cram/brrs/internal/db"
)

func TestQuery_Placeholders(t *testing.T) {
	q := newQuery(postgresDialect, "SELECT * FROM barangays WHERE 1=1")
	q.and("name = " + q.arg("Bantayan"))
	q.and("is_coastal = " + q.arg(true))
	q.page(10, 20)
	assert.Equal(t, "SELECT * FROM barangays WHERE 1=1 AND name = $1 AND is_coastal = $2 LIMIT $3 OFFSET $4", q.String())
	assert.Equal(t, []any{"Bantayan", true, 10, 20}, q.args)

	q = newQuery(sqliteDialect, "SELECT * FROM barangays WHERE 1=1")
	q.and("name = " + q.arg("Bantayan"))
	q.page(5, 0)
	assert.Equal(t, "SELECT * FROM barangays WHERE 1=1 AND name = ? LIMIT ?", q.String())
}

func TestQuery_PageOffsetOnly(t *testing.T) {
	q := newQuery(sqliteDialect, "SELECT 1")
	q.page(0, 3)
	assert.Equal(t, "SELECT 1 LIMIT ? OFFSET ?", q.String())
	assert.Equal(t, []any{2147483647, 3}, q.args)

	q = newQuery(sqliteDialect, "SELECT 1")
	q.page(0, 0)
	assert.Equal(t, "SELECT 1", q.String())
}

func TestOrderBy(t *testing.T) {
	allowed := map[string]string{"name": "b.name"}
	assert.Equal(t, "b.name ASC NULLS LAST", orderBy("name", allowed, "x"))
	assert.Equal(t, "b.name DESC NULLS LAST", orderBy("-name", allowed, "x"))
	assert.Equal(t, "x", orderBy("name; DROP TABLE barangays", allowed, "x"))
	assert.Equal(t, "x", orderBy("", allowed, "x"))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%bantayan%", likePattern("  Bantayan "))
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}

func TestSQLiteUpsertSQL(t *testing.T) {
	got := sqliteUpsertSQL(db.UpsertConfig{
		Table:        "barangays",
		Columns:      []string{"name", "municipality", "population", "geom"},
		ConflictKeys: []string{"name", "municipality"},
		Keep:         []string{"population"},
		Touch:        "updated_at",
	})
	assert.Equal(t,
		"INSERT INTO barangays (name, municipality, population, geom) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT (name, municipality) DO UPDATE SET population = COALESCE(excluded.population, barangays.population), "+
			"geom = excluded.geom, updated_at = datetime('now')",
		got)
}
