package content

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/uptrace/bun"
)

// Repository layers the content conventions over the generic bun
// repository: timestamps, resource scoped not found and conflict errors,
// paged listings and full column updates.
type Repository[T any, PT interface {
	*T
	Record
}] struct {
	repository.Repository[PT]
	db       bun.IDB
	resource string
	now      func() time.Time
}

func NewRepository[T any, PT interface {
	*T
	Record
}](db bun.IDB, resource string, now func() time.Time) *Repository[T, PT] {
	if now == nil {
		now = time.Now
	}
	handlers := repository.ModelHandlers[PT]{
		NewRecord: func() PT { return PT(new(T)) },
		GetID:     func(record PT) uuid.UUID { return record.GetID() },
		SetID:     func(record PT, id uuid.UUID) { record.SetID(id) },
	}
	return &Repository[T, PT]{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
		resource:   resource,
		now:        now,
	}
}

func (r *Repository[T, PT]) GetByID(ctx context.Context, id uuid.UUID, relations ...string) (PT, error) {
	return r.GetByIDTx(ctx, r.db, id, relations...)
}

// GetByIDTx loads a record with the named relations
func (r *Repository[T, PT]) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, relations ...string) (PT, error) {
	criteria := make([]repository.SelectCriteria, 0, len(relations))
	for _, rel := range relations {
		criteria = append(criteria, repository.Relation(rel))
	}

	record, err := r.Repository.GetByIDTx(ctx, tx, id.String(), criteria...)
	if err != nil {
		return nil, r.notFound(err)
	}
	return record, nil
}

// List returns one page of records and the total matching count
func (r *Repository[T, PT]) List(ctx context.Context, page Page, criteria ...repository.SelectCriteria) ([]PT, int, error) {
	criteria = append(criteria, repository.Paginate(page.Limit, page.Skip))
	records, count, err := r.Repository.List(ctx, criteria...)
	if err != nil {
		return nil, 0, err
	}
	if records == nil {
		records = []PT{}
	}
	return records, count, nil
}

func (r *Repository[T, PT]) Create(ctx context.Context, record PT) (PT, error) {
	record.prepare(r.now().UTC())
	if _, err := r.Repository.Create(ctx, record); err != nil {
		return nil, r.conflict(err)
	}
	return record, nil
}

func (r *Repository[T, PT]) CreateTx(ctx context.Context, tx bun.IDB, record PT) (PT, error) {
	record.prepare(r.now().UTC())
	if _, err := r.Repository.CreateTx(ctx, tx, record); err != nil {
		return nil, r.conflict(err)
	}
	return record, nil
}

func (r *Repository[T, PT]) Update(ctx context.Context, record PT) (PT, error) {
	record.prepare(r.now().UTC())
	if _, err := r.Repository.Update(ctx, record, record.columns().Set()...); err != nil {
		return nil, r.updateFailed(err)
	}
	return record, nil
}

// UpdateTx writes every mutable column of the record
func (r *Repository[T, PT]) UpdateTx(ctx context.Context, tx bun.IDB, record PT) (PT, error) {
	record.prepare(r.now().UTC())
	if _, err := r.Repository.UpdateTx(ctx, tx, record, record.columns().Set()...); err != nil {
		return nil, r.updateFailed(err)
	}
	return record, nil
}

func (r *Repository[T, PT]) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	record, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return err
	}
	return r.Repository.DeleteTx(ctx, tx, record)
}

func (r *Repository[T, PT]) notFound(err error) error {
	if repository.IsRecordNotFound(err) {
		return auth.WithCause(auth.NotFound(r.resource), err)
	}
	return err
}

func (r *Repository[T, PT]) conflict(err error) error {
	if auth.IsUniqueViolation(err) {
		return auth.WithCause(auth.Conflict("%s already exists", r.resource), err)
	}
	return err
}

func (r *Repository[T, PT]) updateFailed(err error) error {
	if repository.IsSQLExpectedCountViolation(err) {
		return auth.WithCause(auth.NotFound(r.resource), err)
	}
	return r.conflict(err)
}
