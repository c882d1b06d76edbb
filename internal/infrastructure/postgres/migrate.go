package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration archivo SQL versionado por su nombre (NNN_descripcion.sql).
type Migration struct {
	Name string
	SQL  string
}

// Migrations devuelve las migraciones embebidas en orden de aplicación.
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	list := make([]Migration, 0, len(names))
	for _, name := range names {
		raw, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("leer %s: %w", name, err)
		}
		list = append(list, Migration{Name: name[len("migrations/"):], SQL: string(raw)})
	}
	return list, nil
}

// Migrate aplica las migraciones pendientes, cada una en su propia transacción.
// Devuelve cuántas se aplicaron.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (int, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return 0, fmt.Errorf("crear schema_migrations: %w", err)
	}

	list, err := Migrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range list {
		done, err := runMigration(ctx, pool, m)
		if err != nil {
			return applied, fmt.Errorf("migración %s: %w", m.Name, err)
		}
		if done {
			applied++
			log.Info().Str("migration", m.Name).Msg("migración aplicada")
		}
	}
	return applied, nil
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, m.Name)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
