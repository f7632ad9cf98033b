package comment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

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

// commentColumns maps the access filter facets onto the comments table.
// visible_to is a jsonb array of user id strings.
var commentColumns = access.ColumnMap{
	RelatedPatient:    "patient_id",
	Creator:           "author_id",
	Author:            "author_id",
	Recipients:        "visible_to",
	RecipientsIsJSONB: true,
	Visibility:        "visibility",
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

const commentCols = `id, target_kind, target_id, patient_id, author_id, author_role,
	content, type, priority, visibility, visible_to, parent_id, is_reply,
	status, resolved_by, resolved_at, deleted_by, deleted_at,
	reactions, read_by, flags, mentions, reply_count, last_reply_at,
	created_at, updated_at`

// jsonb codecs. Keyed maps travel as jsonb objects keyed by user id; uuid
// sets travel as jsonb string arrays.

func idsToJSON(ids []uuid.UUID) []byte {
	ss := make([]string, 0, len(ids))
	for _, id := range ids {
		ss = append(ss, id.String())
	}
	b, _ := json.Marshal(ss)
	return b
}

func idsFromJSON(b []byte) ([]uuid.UUID, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func keyedToJSON(m interface{}) []byte {
	b, _ := json.Marshal(m)
	if b == nil || string(b) == "null" {
		return []byte("{}")
	}
	return b
}

func keyedFromJSON[V any](b []byte) (map[uuid.UUID]V, error) {
	out := make(map[uuid.UUID]V)
	if len(b) == 0 {
		return out, nil
	}
	var raw map[string]V
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		id, err := uuid.Parse(k)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

func (r *repoPG) scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	var visibleTo, reactions, readBy, flags, mentions []byte
	err := row.Scan(&c.ID, &c.TargetKind, &c.TargetID, &c.PatientID, &c.AuthorID,
		&c.AuthorRole, &c.Content, &c.Type, &c.Priority, &c.Visibility,
		&visibleTo, &c.ParentID, &c.IsReply,
		&c.Status, &c.ResolvedBy, &c.ResolvedAt, &c.DeletedBy, &c.DeletedAt,
		&reactions, &readBy, &flags, &mentions, &c.ReplyCount, &c.LastReplyAt,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.VisibleTo, err = idsFromJSON(visibleTo); err != nil {
		return nil, err
	}
	if c.Mentions, err = idsFromJSON(mentions); err != nil {
		return nil, err
	}
	if c.Reactions, err = keyedFromJSON[Reaction](reactions); err != nil {
		return nil, err
	}
	if c.ReadBy, err = keyedFromJSON[time.Time](readBy); err != nil {
		return nil, err
	}
	if c.Flags, err = keyedFromJSON[Flag](flags); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Comment) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO comments (id, target_kind, target_id, patient_id, author_id, author_role,
			content, type, priority, visibility, visible_to, parent_id, is_reply,
			status, reactions, read_by, flags, mentions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,'{}','{}','{}',$15)`,
		c.ID, c.TargetKind, c.TargetID, c.PatientID, c.AuthorID, c.AuthorRole,
		c.Content, c.Type, c.Priority, c.Visibility, idsToJSON(c.VisibleTo),
		c.ParentID, c.IsReply, c.Status, idsToJSON(c.Mentions))
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	return r.scanComment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+commentCols+` FROM comments WHERE id = $1`, id))
}

// Update rewrites the mutable scalar fields. Keyed maps are mutated through
// the per-key methods, never here.
func (r *repoPG) Update(ctx context.Context, c *Comment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE comments SET content=$2, type=$3, priority=$4, visibility=$5,
			visible_to=$6, status=$7, resolved_by=$8, resolved_at=$9,
			deleted_by=$10, deleted_at=$11, mentions=$12, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Content, c.Type, c.Priority, c.Visibility, idsToJSON(c.VisibleTo),
		c.Status, c.ResolvedBy, c.ResolvedAt, c.DeletedBy, c.DeletedAt,
		idsToJSON(c.Mentions))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, q ListQuery) ([]*Comment, int, error) {
	where, args := buildWhere(q)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM comments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM comments%s ORDER BY %s LIMIT $%d OFFSET $%d`,
			commentCols, where, orderBy(q.Sort), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListReplies(ctx context.Context, parentID uuid.UUID) ([]*Comment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+commentCols+` FROM comments WHERE parent_id = $1 ORDER BY created_at ASC`,
		parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Comment, error) {
	var items []*Comment
	for rows.Next() {
		c, err := scanFromRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func scanFromRows(rows pgx.Rows) (*Comment, error) {
	var c Comment
	var visibleTo, reactions, readBy, flags, mentions []byte
	err := rows.Scan(&c.ID, &c.TargetKind, &c.TargetID, &c.PatientID, &c.AuthorID,
		&c.AuthorRole, &c.Content, &c.Type, &c.Priority, &c.Visibility,
		&visibleTo, &c.ParentID, &c.IsReply,
		&c.Status, &c.ResolvedBy, &c.ResolvedAt, &c.DeletedBy, &c.DeletedAt,
		&reactions, &readBy, &flags, &mentions, &c.ReplyCount, &c.LastReplyAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.VisibleTo, err = idsFromJSON(visibleTo); err != nil {
		return nil, err
	}
	if c.Mentions, err = idsFromJSON(mentions); err != nil {
		return nil, err
	}
	if c.Reactions, err = keyedFromJSON[Reaction](reactions); err != nil {
		return nil, err
	}
	if c.ReadBy, err = keyedFromJSON[time.Time](readBy); err != nil {
		return nil, err
	}
	if c.Flags, err = keyedFromJSON[Flag](flags); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetReaction upserts the user's key in the reactions map, replacing any
// prior reaction from the same user in one statement.
func (r *repoPG) SetReaction(ctx context.Context, id, userID uuid.UUID, reaction Reaction) error {
	payload, _ := json.Marshal(reaction)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE comments SET reactions = jsonb_set(reactions, ARRAY[$2], $3::jsonb), updated_at = NOW()
		WHERE id = $1`,
		id, userID.String(), payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) RemoveReaction(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE comments SET reactions = reactions - $2, updated_at = NOW()
		WHERE id = $1`,
		id, userID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// MarkRead records the receipt once; a user who already read the comment
// keeps the original timestamp.
func (r *repoPG) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	payload, _ := json.Marshal(at)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE comments SET read_by = CASE
			WHEN read_by ? $2 THEN read_by
			ELSE jsonb_set(read_by, ARRAY[$2], $3::jsonb)
		END
		WHERE id = $1`,
		id, userID.String(), payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) AddFlag(ctx context.Context, id, userID uuid.UUID, f Flag) error {
	payload, _ := json.Marshal(f)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE comments SET flags = jsonb_set(flags, ARRAY[$2], $3::jsonb), updated_at = NOW()
		WHERE id = $1`,
		id, userID.String(), payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE comments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) SetThreadStats(ctx context.Context, id uuid.UUID, replyCount int, lastReplyAt *time.Time) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE comments SET reply_count = $2, last_reply_at = $3 WHERE id = $1`,
		id, replyCount, lastReplyAt)
	return err
}

func buildWhere(q ListQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if frag, fargs := q.Filter.SQL(commentColumns, 1); frag != "" {
		conds = append(conds, frag)
		args = append(args, fargs...)
	}
	if q.RootsOnly {
		conds = append(conds, "is_reply = FALSE")
	}
	if q.TargetKind != "" {
		args = append(args, q.TargetKind)
		conds = append(conds, fmt.Sprintf("target_kind = $%d", len(args)))
	}
	if q.TargetID != uuid.Nil {
		args = append(args, q.TargetID)
		conds = append(conds, fmt.Sprintf("target_id = $%d", len(args)))
	}
	if q.PatientID != uuid.Nil {
		args = append(args, q.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Type != "" {
		args = append(args, q.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if q.Priority != "" {
		args = append(args, q.Priority)
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		conds = append(conds, fmt.Sprintf("content ILIKE $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(sort string) string {
	switch sort {
	case "oldest":
		return "created_at ASC"
	case "priority":
		return `CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END, created_at DESC`
	case "activity":
		return "COALESCE(last_reply_at, created_at) DESC"
	default:
		return "created_at DESC"
	}
}
