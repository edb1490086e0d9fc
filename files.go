package auth

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// Migrate applies the embedded sqlite migrations in name order. Every
// statement is idempotent so running it twice is safe.
func Migrate(ctx context.Context, db bun.IDB) error {
	dir := "data/sql/migrations/sqlite"
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to read migrations")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationsFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to read migration").
				WithMetadata(map[string]any{"file": name})
		}
		for _, stmt := range strings.Split(string(body), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to apply migration").
					WithMetadata(map[string]any{"file": name})
			}
		}
	}
	return nil
}
