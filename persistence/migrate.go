package persistence

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations holds the embedded SQL migrations
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.Discover(GetMigrationsFS()); err != nil {
		panic(fmt.Errorf("discover migrations: %w", err))
	}
}

// Migrator applies and rolls back the embedded migrations
type Migrator struct {
	m *migrate.Migrator
}

func NewMigrator(db *bun.DB) *Migrator {
	return &Migrator{m: migrate.NewMigrator(db, Migrations)}
}

// Migrate applies all pending migrations as one group. It returns the
// names of the applied migrations, empty when the schema is current.
func (m *Migrator) Migrate(ctx context.Context) ([]string, error) {
	if err := m.m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if err := m.m.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer m.m.Unlock(ctx) //nolint:errcheck

	group, err := m.m.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return groupNames(group), nil
}

// Rollback reverts the last applied migration group
func (m *Migrator) Rollback(ctx context.Context) ([]string, error) {
	if err := m.m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if err := m.m.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer m.m.Unlock(ctx) //nolint:errcheck

	group, err := m.m.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}
	return groupNames(group), nil
}

// Pending lists migrations not yet applied
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	if err := m.m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	ms, err := m.m.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, err
	}
	unapplied := ms.Unapplied()
	names := make([]string, 0, len(unapplied))
	for _, mig := range unapplied {
		names = append(names, mig.Name)
	}
	return names, nil
}

func groupNames(group *migrate.MigrationGroup) []string {
	if group == nil || group.IsZero() {
		return nil
	}
	names := make([]string, 0, len(group.Migrations))
	for _, mig := range group.Migrations {
		names = append(names, mig.Name)
	}
	return names
}
