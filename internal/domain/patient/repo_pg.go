package patient

import (
	"context"
	"fmt"
	"strings"
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

const patientCols = `id, facility_id, name, date_of_birth, room_number, type_of_consent,
	primary_insurance, date_last_seen, status, created_at, updated_at, deleted_at`

func pgPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// pgDate converts a normalized YYYY-MM-DD value into a DATE argument.
func pgDate(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if t, ok := ParseDate(s); ok {
		return t
	}
	return v
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.DeletedAt = nil
	var seen interface{}
	if p.DateLastSeen != nil {
		seen = pgDate(*p.DateLastSeen)
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, facility_id, name, date_of_birth, room_number, type_of_consent,
			primary_insurance, date_last_seen, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.FacilityID, p.Name, p.DateOfBirth, p.RoomNumber, p.TypeOfConsent,
		p.PrimaryInsurance, seen, statusArg(p.Status),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperror.Invalid("facility_id", "The selected facility id is invalid.")
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1 AND `+scope.Predicate(), id)
}

func (r *repoPG) Update(ctx context.Context, id uuid.UUID, u *Update) (*Patient, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	for _, a := range u.assignments() {
		v := a.value
		if a.column == "date_last_seen" {
			v = pgDate(v)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", a.column, len(args)))
	}

	return r.one(ctx, `UPDATE patients SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+patientCols, args...)
}

func (r *repoPG) Archive(ctx context.Context, id uuid.UUID, at time.Time) (*Patient, error) {
	return r.one(ctx, `
		UPDATE patients SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+patientCols, id, at)
}

func (r *repoPG) Restore(ctx context.Context, id uuid.UUID, status Status) (*Patient, error) {
	return r.one(ctx, `
		UPDATE patients SET deleted_at = NULL, status = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL
		RETURNING `+patientCols, id, string(status))
}

func (r *repoPG) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("purge patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter) ([]*Patient, int, error) {
	where, args := filterClauses(filter, pgPlaceholder)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query := `SELECT ` + patientCols + ` FROM patients WHERE ` + where + ` ORDER BY name ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
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

func (r *repoPG) CountByFacility(ctx context.Context, facilityID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE facility_id = $1`, facilityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count patients by facility: %w", err)
	}
	return n, nil
}

func (r *repoPG) one(ctx context.Context, sql string, args ...interface{}) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.ErrNotFound
		}
		if db.IsForeignKeyViolation(err) {
			return nil, apperror.Invalid("facility_id", "The selected facility id is invalid.")
		}
		return nil, err
	}
	return p, nil
}

func statusArg(s *Status) interface{} {
	if s == nil {
		return nil
	}
	return string(*s)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p      Patient
		seen   *time.Time
		status *string
	)
	err := row.Scan(
		&p.ID, &p.FacilityID, &p.Name, &p.DateOfBirth, &p.RoomNumber, &p.TypeOfConsent,
		&p.PrimaryInsurance, &seen, &status, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if seen != nil {
		d := FormatDate(*seen)
		p.DateLastSeen = &d
	}
	if status != nil {
		s := Status(*status)
		p.Status = &s
	}
	return &p, nil
}
