package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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

func sqlitePlaceholder(int) string { return "?" }

func (r *repoSQLite) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (id, facility_id, name, date_of_birth, room_number, type_of_consent,
			primary_insurance, date_last_seen, status, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID.String(), p.FacilityID.String(), p.Name, p.DateOfBirth, p.RoomNumber, p.TypeOfConsent,
		p.PrimaryInsurance, p.DateLastSeen, statusArg(p.Status), db.FormatTime(now), db.FormatTime(now),
	)
	if err != nil {
		if db.IsSQLiteForeignKeyViolation(err) {
			return apperror.Invalid("facility_id", "The selected facility id is invalid.")
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	p.CreatedAt, p.UpdatedAt, p.DeletedAt = now, now, nil
	return nil
}

func (r *repoSQLite) Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientCols+` FROM patients WHERE id = ? AND `+scope.Predicate(), id.String())
}

func (r *repoSQLite) Update(ctx context.Context, id uuid.UUID, u *Update) (*Patient, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{db.FormatTime(r.now())}
	for _, a := range u.assignments() {
		v := a.value
		if fid, ok := v.(uuid.UUID); ok {
			v = fid.String()
		}
		sets = append(sets, a.column+" = ?")
		args = append(args, v)
	}
	args = append(args, id.String())

	return r.one(ctx, `UPDATE patients SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND deleted_at IS NULL
		RETURNING `+patientCols, args...)
}

func (r *repoSQLite) Archive(ctx context.Context, id uuid.UUID, at time.Time) (*Patient, error) {
	ts := db.FormatTime(at)
	return r.one(ctx, `
		UPDATE patients SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING `+patientCols, ts, ts, id.String())
}

func (r *repoSQLite) Restore(ctx context.Context, id uuid.UUID, status Status) (*Patient, error) {
	return r.one(ctx, `
		UPDATE patients SET deleted_at = NULL, status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NOT NULL
		RETURNING `+patientCols, string(status), db.FormatTime(r.now()), id.String())
}

func (r *repoSQLite) Purge(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("purge patient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("purge patient: %w", err)
	}
	if n == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoSQLite) List(ctx context.Context, filter ListFilter) ([]*Patient, int, error) {
	where, args := filterClauses(filter, sqlitePlaceholder)
	for i, a := range args {
		if fid, ok := a.(uuid.UUID); ok {
			args[i] = fid.String()
		}
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query := `SELECT ` + patientCols + ` FROM patients WHERE ` + where + ` ORDER BY name ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatientSQLite(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patients: %w", err)
	}
	return items, total, nil
}

func (r *repoSQLite) CountByFacility(ctx context.Context, facilityID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients WHERE facility_id = ?`, facilityID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count patients by facility: %w", err)
	}
	return n, nil
}

func (r *repoSQLite) one(ctx context.Context, query string, args ...interface{}) (*Patient, error) {
	p, err := scanPatientSQLite(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		if db.IsSQLiteForeignKeyViolation(err) {
			return nil, apperror.Invalid("facility_id", "The selected facility id is invalid.")
		}
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatientSQLite(row rowScanner) (*Patient, error) {
	var (
		p                Patient
		status           sql.NullString
		created, updated string
		deleted          sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.FacilityID, &p.Name, &p.DateOfBirth, &p.RoomNumber, &p.TypeOfConsent,
		&p.PrimaryInsurance, &p.DateLastSeen, &status, &created, &updated, &deleted,
	)
	if err != nil {
		return nil, err
	}
	if status.Valid {
		s := Status(status.String)
		p.Status = &s
	}
	if p.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return nil, err
	}
	if p.DeletedAt, err = db.ParseNullTime(deleted); err != nil {
		return nil, err
	}
	return &p, nil
}
