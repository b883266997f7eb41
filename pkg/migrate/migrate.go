// Package migrate applies the goose SQL migrations bundled into every binary.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// SourceDir is where new migration files are written, relative to the repo root.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var bundled embed.FS

// Bundled returns the embedded migrations rooted at their directory.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, migrations fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: p}, nil
}

// Up applies every pending migration and returns the versions applied.
func (r *Runner) Up(ctx context.Context) ([]int64, error) {
	res, err := r.provider.Up(ctx)
	return versions(res), err
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) ([]int64, error) {
	res, err := r.provider.Down(ctx)
	if res == nil {
		return nil, err
	}
	return versions([]*goose.MigrationResult{res}), err
}

// To moves the schema up or down until target is the latest applied version.
func (r *Runner) To(ctx context.Context, target int64) ([]int64, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("current version: %w", err)
	}
	var res []*goose.MigrationResult
	switch {
	case target > current:
		res, err = r.provider.UpTo(ctx, target)
	case target < current:
		res, err = r.provider.DownTo(ctx, target)
	}
	return versions(res), err
}

func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return r.provider.Status(ctx)
}

func versions(res []*goose.MigrationResult) []int64 {
	out := make([]int64, 0, len(res))
	for _, m := range res {
		if m != nil && m.Source != nil {
			out = append(out, m.Source.Version)
		}
	}
	return out
}
