package store

import (
	"context"
	"database/sql"
	"embed"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/negros-cram/brrs/internal/db"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// SQLiteStore implements Store using modernc.org/sqlite. Geometry is kept
// as EWKB blobs and every spatial computation happens in Go.
type SQLiteStore struct {
	*base
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps :memory: databases and pragmas consistent.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{
		base: newBase(sqliteDialect, &sqlBackend{conn: conn, db: conn}),
		db:   conn,
	}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded migrations in filename order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	names, err := migrationFiles(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return err
	}
	for _, name := range names {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&n); err != nil {
			return eris.Wrapf(err, "sqlite: check migration %s", name)
		}
		if n > 0 {
			continue
		}
		data, err := sqliteMigrations.ReadFile("migrations/sqlite/" + name)
		if err != nil {
			return eris.Wrapf(err, "sqlite: read migration %s", name)
		}
		zap.L().Info("applying migration", zap.String("component", "store.migrate"), zap.String("file", name))
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", name)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", name)
		}
	}
	return nil
}

type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlBackend runs statements on the database or, when db is nil, on an
// open transaction.
type sqlBackend struct {
	conn sqlConn
	db   *sql.DB
}

func (b *sqlBackend) query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := b.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (b *sqlBackend) queryRow(ctx context.Context, query string, args ...any) scannable {
	return sqlRow{b.conn.QueryRowContext(ctx, query, args...)}
}

func (b *sqlBackend) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := b.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (b *sqlBackend) inTx(ctx context.Context, fn func(backend) error) error {
	if b.db == nil {
		return fn(b)
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&sqlBackend{conn: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// upsert mirrors db.BulkUpsert with row-wise INSERT ... ON CONFLICT inside
// one transaction.
func (b *sqlBackend) upsert(ctx context.Context, cfg db.UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 && cfg.Replace == nil {
		return 0, nil
	}
	if len(cfg.Columns) == 0 || len(cfg.ConflictKeys) == 0 {
		return 0, eris.Errorf("sqlite: upsert %s: columns and conflict keys are required", cfg.Table)
	}
	stmt := sqliteUpsertSQL(cfg)

	var total int64
	err := b.inTx(ctx, func(be backend) error {
		tx := be.(*sqlBackend)
		if err := tx.deleteScope(ctx, cfg.Table, cfg.Replace); err != nil {
			return err
		}
		for _, row := range rows {
			n, err := tx.exec(ctx, stmt, row...)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert %s", cfg.Table)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (b *sqlBackend) replace(ctx context.Context, table string, scope db.Scope, columns []string, rows [][]any) (int64, error) {
	stmt := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders(len(columns)) + ")"

	var total int64
	err := b.inTx(ctx, func(be backend) error {
		tx := be.(*sqlBackend)
		if err := tx.deleteScope(ctx, table, &scope); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := tx.exec(ctx, stmt, row...); err != nil {
				return eris.Wrapf(err, "sqlite: insert into %s", table)
			}
			total++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (b *sqlBackend) deleteScope(ctx context.Context, table string, scope *db.Scope) error {
	if scope == nil {
		return nil
	}
	stmt := "DELETE FROM " + table
	if scope.Where != "" {
		stmt += " WHERE " + scope.Where
	}
	_, err := b.exec(ctx, stmt, scope.Args...)
	return eris.Wrapf(err, "sqlite: delete from %s", table)
}

func sqliteUpsertSQL(cfg db.UpsertConfig) string {
	conflict := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		conflict[k] = true
	}
	keep := make(map[string]bool, len(cfg.Keep))
	for _, k := range cfg.Keep {
		keep[k] = true
	}
	updateCols := cfg.UpdateCols
	if updateCols == nil {
		for _, c := range cfg.Columns {
			if !conflict[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	var sets []string
	for _, c := range updateCols {
		if keep[c] {
			sets = append(sets, c+" = COALESCE(excluded."+c+", "+cfg.Table+"."+c+")")
			continue
		}
		sets = append(sets, c+" = excluded."+c)
	}
	if cfg.Touch != "" {
		sets = append(sets, cfg.Touch+" = datetime('now')")
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return "INSERT INTO " + cfg.Table + " (" + strings.Join(cfg.Columns, ", ") + ") VALUES (" +
		placeholders(len(cfg.Columns)) + ") ON CONFLICT (" + strings.Join(cfg.ConflictKeys, ", ") + ") " + action
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// sqlRows adapts *sql.Rows to the rows interface.
type sqlRows struct {
	r *sql.Rows
}

func (s sqlRows) Next() bool             { return s.r.Next() }
func (s sqlRows) Scan(dest ...any) error { return s.r.Scan(dest...) }
func (s sqlRows) Err() error             { return s.r.Err() }
func (s sqlRows) Close()                 { _ = s.r.Close() }

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if eris.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
