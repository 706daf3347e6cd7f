package facility

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/empathic/podiatry/internal/platform/apperror"
	"github.com/empathic/podiatry/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const facilityCols = `id, name, address_one, address_two, city, state, zip,
	phone_one, phone_two, email, contact_name, created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	f.DeletedAt = nil
	err := r.pool.QueryRow(ctx, `
		INSERT INTO facilities (id, name, address_one, address_two, city, state, zip,
			phone_one, phone_two, email, contact_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		f.ID, f.Name, f.AddressOne, f.AddressTwo, f.City, f.State, f.Zip,
		f.PhoneOne, f.PhoneTwo, f.Email, f.ContactName,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert facility: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Facility, error) {
	return r.one(ctx, `SELECT `+facilityCols+` FROM facilities WHERE id = $1 AND `+scope.Predicate(), id)
}

func (r *repoPG) Update(ctx context.Context, f *Facility) error {
	updated, err := r.one(ctx, `
		UPDATE facilities SET
			name=$2, address_one=$3, address_two=$4, city=$5, state=$6, zip=$7,
			phone_one=$8, phone_two=$9, email=$10, contact_name=$11, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+facilityCols,
		f.ID, f.Name, f.AddressOne, f.AddressTwo, f.City, f.State, f.Zip,
		f.PhoneOne, f.PhoneTwo, f.Email, f.ContactName,
	)
	if err != nil {
		return err
	}
	*f = *updated
	return nil
}

func (r *repoPG) Archive(ctx context.Context, id uuid.UUID, at time.Time) (*Facility, error) {
	return r.one(ctx, `
		UPDATE facilities SET deleted_at=$2, updated_at=$2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+facilityCols, id, at)
}

func (r *repoPG) Restore(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return r.one(ctx, `
		UPDATE facilities SET deleted_at=NULL, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL
		RETURNING `+facilityCols, id)
}

func (r *repoPG) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM facilities WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("purge facility %s: %w", id, apperror.ErrConflict)
		}
		return fmt.Errorf("purge facility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter) ([]*Facility, int, error) {
	where := ` WHERE ` + filter.Scope.Predicate()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM facilities`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count facilities: %w", err)
	}

	query := `SELECT ` + facilityCols + ` FROM facilities` + where + ` ORDER BY name ASC, id ASC`
	args := []interface{}{}
	if filter.Limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate facilities: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) one(ctx context.Context, sql string, args ...interface{}) (*Facility, error) {
	f, err := scanFacility(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(
		&f.ID, &f.Name, &f.AddressOne, &f.AddressTwo, &f.City, &f.State, &f.Zip,
		&f.PhoneOne, &f.PhoneTwo, &f.Email, &f.ContactName,
		&f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
