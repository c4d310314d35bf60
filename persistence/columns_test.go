package persistence_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type flagRecord struct {
	bun.BaseModel `bun:"table:flags,alias:flg"`
	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	Label         string    `bun:"label,notnull"`
	Enabled       bool      `bun:"enabled,notnull"`
}

func newFlagRepository(t *testing.T) repository.Repository[*flagRecord] {
	t.Helper()
	db := openSQLite(t)
	_, err := db.NewCreateTable().Model((*flagRecord)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return repository.NewRepository(db, repository.ModelHandlers[*flagRecord]{
		NewRecord: func() *flagRecord { return &flagRecord{} },
		GetID:     func(r *flagRecord) uuid.UUID { return r.ID },
		SetID:     func(r *flagRecord, id uuid.UUID) { r.ID = id },
	})
}

func TestColumnsSetWritesZeroValues(t *testing.T) {
	ctx := context.Background()
	repo := newFlagRepository(t)

	rec, err := repo.Create(ctx, &flagRecord{Label: "breaking", Enabled: true})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, rec.ID)

	t.Run("plain update skips zero fields", func(t *testing.T) {
		_, err := repo.Update(ctx, &flagRecord{ID: rec.ID, Label: "renamed"})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, rec.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Label)
		assert.True(t, got.Enabled)
	})

	t.Run("set columns writes false and empty", func(t *testing.T) {
		target := &flagRecord{ID: rec.ID}
		_, err := repo.Update(ctx, target, persistence.Columns{
			"enabled": false,
			"label":   "",
		}.Set()...)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, rec.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "", got.Label)
		assert.False(t, got.Enabled)
	})

	t.Run("missing row is a count violation", func(t *testing.T) {
		_, err := repo.Update(ctx, &flagRecord{ID: uuid.New()}, persistence.Columns{"enabled": true}.Set()...)
		assert.True(t, repository.IsRecordNotFound(err))
	})
}
