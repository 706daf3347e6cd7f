package facility

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/empathic/podiatry/internal/platform/apperror"
	"github.com/empathic/podiatry/internal/platform/db"
)

type repoSQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepo returns a Repository backed by an SQLite handle from db.OpenSQLite.
func NewSQLiteRepo(conn *sql.DB) Repository {
	return &repoSQLite{db: conn, now: time.Now}
}

func (r *repoSQLite) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO facilities (id, name, address_one, address_two, city, state, zip,
			phone_one, phone_two, email, contact_name, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID.String(), f.Name, f.AddressOne, f.AddressTwo, f.City, f.State, f.Zip,
		f.PhoneOne, f.PhoneTwo, f.Email, f.ContactName, db.FormatTime(now), db.FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert facility: %w", err)
	}
	f.CreatedAt, f.UpdatedAt, f.DeletedAt = now, now, nil
	return nil
}

func (r *repoSQLite) Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Facility, error) {
	return r.one(ctx, `SELECT `+facilityCols+` FROM facilities WHERE id = ? AND `+scope.Predicate(), id.String())
}

func (r *repoSQLite) Update(ctx context.Context, f *Facility) error {
	updated, err := r.one(ctx, `
		UPDATE facilities SET
			name=?, address_one=?, address_two=?, city=?, state=?, zip=?,
			phone_one=?, phone_two=?, email=?, contact_name=?, updated_at=?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING `+facilityCols,
		f.Name, f.AddressOne, f.AddressTwo, f.City, f.State, f.Zip,
		f.PhoneOne, f.PhoneTwo, f.Email, f.ContactName, db.FormatTime(r.now()),
		f.ID.String(),
	)
	if err != nil {
		return err
	}
	*f = *updated
	return nil
}

func (r *repoSQLite) Archive(ctx context.Context, id uuid.UUID, at time.Time) (*Facility, error) {
	ts := db.FormatTime(at)
	return r.one(ctx, `
		UPDATE facilities SET deleted_at=?, updated_at=?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING `+facilityCols, ts, ts, id.String())
}

func (r *repoSQLite) Restore(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return r.one(ctx, `
		UPDATE facilities SET deleted_at=NULL, updated_at=?
		WHERE id = ? AND deleted_at IS NOT NULL
		RETURNING `+facilityCols, db.FormatTime(r.now()), id.String())
}

func (r *repoSQLite) Purge(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM facilities WHERE id = ?`, id.String())
	if err != nil {
		if db.IsSQLiteForeignKeyViolation(err) {
			return fmt.Errorf("purge facility %s: %w", id, apperror.ErrConflict)
		}
		return fmt.Errorf("purge facility: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("purge facility: %w", err)
	}
	if n == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoSQLite) List(ctx context.Context, filter ListFilter) ([]*Facility, int, error) {
	where := ` WHERE ` + filter.Scope.Predicate()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facilities`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count facilities: %w", err)
	}

	query := `SELECT ` + facilityCols + ` FROM facilities` + where + ` ORDER BY name ASC, id ASC`
	var args []interface{}
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var items []*Facility
	for rows.Next() {
		f, err := scanFacilitySQLite(rows)
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

func (r *repoSQLite) one(ctx context.Context, query string, args ...interface{}) (*Facility, error) {
	f, err := scanFacilitySQLite(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacilitySQLite(row rowScanner) (*Facility, error) {
	var (
		f                Facility
		created, updated string
		deleted          sql.NullString
	)
	err := row.Scan(
		&f.ID, &f.Name, &f.AddressOne, &f.AddressTwo, &f.City, &f.State, &f.Zip,
		&f.PhoneOne, &f.PhoneTwo, &f.Email, &f.ContactName,
		&created, &updated, &deleted,
	)
	if err != nil {
		return nil, err
	}
	if f.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return nil, err
	}
	if f.DeletedAt, err = db.ParseNullTime(deleted); err != nil {
		return nil, err
	}
	return &f, nil
}
