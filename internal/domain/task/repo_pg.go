package task

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

// taskColumns maps the access filter facets onto the rehab_tasks table.
var taskColumns = access.ColumnMap{
	RelatedPatient: "patient_id",
	Creator:        "created_by",
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const taskCols = `id, patient_id, created_by, title, description, status, frequency,
	duration_minutes, start_date, end_date, created_at, updated_at`

func (r *repoPG) scanTask(row pgx.Row) (*RehabTask, error) {
	var t RehabTask
	err := row.Scan(&t.ID, &t.PatientID, &t.CreatedBy, &t.Title, &t.Description,
		&t.Status, &t.Frequency, &t.DurationMinutes, &t.StartDate, &t.EndDate,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *RehabTask) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO rehab_tasks (id, patient_id, created_by, title, description, status,
			frequency, duration_minutes, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.PatientID, t.CreatedBy, t.Title, t.Description, t.Status,
		t.Frequency, t.DurationMinutes, t.StartDate, t.EndDate)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*RehabTask, error) {
	return r.scanTask(r.conn(ctx).QueryRow(ctx,
		`SELECT `+taskCols+` FROM rehab_tasks WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, t *RehabTask) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE rehab_tasks SET title=$2, description=$3, status=$4, frequency=$5,
			duration_minutes=$6, start_date=$7, end_date=$8, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Status, t.Frequency,
		t.DurationMinutes, t.StartDate, t.EndDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM rehab_tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, q ListQuery) ([]*RehabTask, int, error) {
	where, args := buildWhere(q)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM rehab_tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM rehab_tasks%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			taskCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*RehabTask
	for rows.Next() {
		var t RehabTask
		if err := rows.Scan(&t.ID, &t.PatientID, &t.CreatedBy, &t.Title, &t.Description,
			&t.Status, &t.Frequency, &t.DurationMinutes, &t.StartDate, &t.EndDate,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &t)
	}
	return items, total, rows.Err()
}

// buildWhere renders the access filter plus the optional narrowing conditions
// into a WHERE clause with positional args.
func buildWhere(q ListQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if frag, fargs := q.Filter.SQL(taskColumns, 1); frag != "" {
		conds = append(conds, frag)
		args = append(args, fargs...)
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.PatientID != uuid.Nil {
		args = append(args, q.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
