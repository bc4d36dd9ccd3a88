package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Each backend keeps its own schema history for session_state under
// migrations/<backend>/NNNN_name.sql.
//
//go:embed migrations
var migrationsFS embed.FS

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.sql$`)

type migration struct {
	version int
	name    string
	body    string
	hash    string
}

// ErrMigrationDrift reports an applied migration whose file has since changed.
var ErrMigrationDrift = errors.New("storage: applied migration was modified")

func loadMigrations(backend string) ([]migration, error) {
	dir := path.Join("migrations", backend)
	list, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, err
	}
	var out []migration
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		m := migFileRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		var ver int
		if _, err := fmt.Sscanf(m[1], "%04d", &ver); err != nil {
			continue
		}
		body, err := migrationsFS.ReadFile(path.Join(dir, de.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, migration{
			version: ver,
			name:    m[2],
			body:    string(body),
			hash:    fmt.Sprintf("%x", sha256.Sum256(body)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// check compares the recorded hash of an applied migration; an empty
// recorded hash means the version has not been applied yet.
func (m migration) check(recorded string) (applied bool, err error) {
	if recorded == "" {
		return false, nil
	}
	if recorded != m.hash {
		return true, fmt.Errorf("%w: %04d_%s", ErrMigrationDrift, m.version, m.name)
	}
	return true, nil
}

// ApplySchema brings the Postgres session_state schema up to date, one
// transaction per pending migration.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	hash TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return err
	}
	migs, err := loadMigrations("postgres")
	if err != nil {
		return err
	}
	for _, m := range migs {
		var recorded string
		err := pool.QueryRow(ctx, `SELECT hash FROM schema_migrations WHERE version = $1`, m.version).Scan(&recorded)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		applied, err := m.check(recorded)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.body); err != nil {
				return fmt.Errorf("migration %04d_%s failed: %w", m.version, m.name, err)
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name, hash) VALUES ($1, $2, $3)`,
				m.version, m.name, m.hash)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func applySQLiteMigrations(d *sql.DB) error {
	_, err := d.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        name TEXT NOT NULL,
        hash TEXT NOT NULL,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`)
	if err != nil {
		return err
	}
	migs, err := loadMigrations("sqlite")
	if err != nil {
		return err
	}
	for _, m := range migs {
		var recorded string
		err := d.QueryRow(`SELECT hash FROM schema_migrations WHERE version = ?`, m.version).Scan(&recorded)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		applied, err := m.check(recorded)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		tx, err := d.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.body); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %04d_%s failed: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, hash) VALUES (?, ?, ?)`,
			m.version, m.name, m.hash); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
