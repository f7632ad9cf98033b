package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const userCols = `id, name, handle, email, role, active, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Handle, &u.Email, &u.Role, &u.Active,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, name, handle, email, role, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Handle, u.Email, u.Role, u.Active)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: handle or email already in use", apperr.ErrDuplicate)
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByHandle(ctx context.Context, handle string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE handle = $1`, strings.ToLower(handle)))
}

func (r *userRepoPG) GetByHandles(ctx context.Context, handles []string) ([]*User, error) {
	lowered := make([]string, len(handles))
	for i, h := range handles {
		lowered[i] = strings.ToLower(h)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users WHERE handle = ANY($1)`, lowered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET name=$2, handle=$3, email=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Name, u.Handle, u.Email, u.Active)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: handle or email already in use", apperr.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, role access.Role, limit, offset int) ([]*User, int, error) {
	var total int
	var rows pgx.Rows
	var err error
	if role != "" {
		if err = r.conn(ctx).QueryRow(ctx,
			`SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY name LIMIT $2 OFFSET $3`,
			role, limit, offset)
	} else {
		if err = r.conn(ctx).QueryRow(ctx,
			`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+userCols+` FROM users ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	users, err := collectUsers(rows)
	return users, total, err
}

func (r *userRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Handle, &u.Email, &u.Role, &u.Active,
			&u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =========== Assignment Repository ===========

type assignmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pool: pool}
}

func (r *assignmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *assignmentRepoPG) Assign(ctx context.Context, patientID, providerID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_providers (patient_id, provider_id)
		VALUES ($1,$2)
		ON CONFLICT (patient_id, provider_id) DO NOTHING`,
		patientID, providerID)
	return err
}

func (r *assignmentRepoPG) Unassign(ctx context.Context, patientID, providerID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM patient_providers WHERE patient_id = $1 AND provider_id = $2`,
		patientID, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *assignmentRepoPG) PatientIDsForProvider(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	return r.collectIDs(ctx,
		`SELECT patient_id FROM patient_providers WHERE provider_id = $1`, providerID)
}

func (r *assignmentRepoPG) ProviderIDsForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	return r.collectIDs(ctx,
		`SELECT provider_id FROM patient_providers WHERE patient_id = $1`, patientID)
}

func (r *assignmentRepoPG) Exists(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM patient_providers WHERE patient_id = $1 AND provider_id = $2)`,
		patientID, providerID).Scan(&exists)
	return exists, err
}

func (r *assignmentRepoPG) collectIDs(ctx context.Context, query string, arg interface{}) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
