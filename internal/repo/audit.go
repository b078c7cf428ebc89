package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/crucial707/audit-search/internal/models"
	"github.com/lib/pq"
)

// LoginFields are the principal columns that may act as the login field.
// The value is spliced into SQL, so it must come from this set.
var LoginFields = map[string]bool{"username": true, "email": true}

// AuditRepo reads and appends audit log entries.
type AuditRepo struct {
	db         *sql.DB
	loginField string
}

// NewAuditRepo returns a new AuditRepo. loginField falls back to "username"
// when it is not one of LoginFields.
func NewAuditRepo(db *sql.DB, loginField string) *AuditRepo {
	if !LoginFields[loginField] {
		loginField = "username"
	}
	return &AuditRepo{db: db, loginField: loginField}
}

// LoginField is the principal column matched and displayed as the actor login.
func (r *AuditRepo) LoginField() string { return r.loginField }

// LogInput is one change to append to the audit log.
type LogInput struct {
	ActorID       *int64
	ObjectRepr    string
	Changes       json.RawMessage
	ContentTypeID int
	ObjectID      int64
	CID           string
	Action        models.Action
	RemoteAddr    string
}

// Log appends an audit entry and returns its id.
func (r *AuditRepo) Log(ctx context.Context, in LogInput) (int64, error) {
	var changes any
	if len(in.Changes) > 0 {
		changes = string(in.Changes)
	}
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO audit_log (actor_id, object_repr, changes, content_type_id, object_id, cid, action, remote_addr) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, '')) RETURNING id`,
		in.ActorID, in.ObjectRepr, changes, in.ContentTypeID, in.ObjectID, in.CID, int(in.Action), in.RemoteAddr,
	).Scan(&id)
	return id, err
}

// Get returns one audit entry by id.
func (r *AuditRepo) Get(ctx context.Context, id int64) (*models.AuditEntry, error) {
	query := `SELECT ` + r.columns() + ` FROM audit_log l LEFT JOIN auth_user u ON u.id = l.actor_id WHERE l.id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	e, err := scanEntry(row, false)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Find evaluates q and returns one page of it.
func (r *AuditRepo) Find(ctx context.Context, q Query, limit, offset int) ([]models.AuditEntry, error) {
	if q.IsNone() {
		return nil, nil
	}
	query, args := r.SQL(q)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		e, err := scanEntry(rows, q.Scored())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of rows in q.
func (r *AuditRepo) Count(ctx context.Context, q Query) (int, error) {
	if q.IsNone() {
		return 0, nil
	}
	b := r.build(q)
	query := b.with + `SELECT COUNT(*) FROM audit_log l` + b.whereClause()
	var n int
	err := r.db.QueryRowContext(ctx, query, b.args...).Scan(&n)
	return n, err
}

// Explain runs EXPLAIN ANALYZE for the unpaginated query and returns the plan lines.
func (r *AuditRepo) Explain(ctx context.Context, q Query) ([]string, error) {
	if q.IsNone() {
		return nil, nil
	}
	query, args := r.SQL(q)
	rows, err := r.db.QueryContext(ctx, "EXPLAIN ANALYZE "+query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plan []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		plan = append(plan, line)
	}
	return plan, rows.Err()
}

// SQL returns the unpaginated select statement for q and its arguments.
func (r *AuditRepo) SQL(q Query) (string, []any) {
	if q.IsNone() {
		return "", nil
	}
	b := r.build(q)
	cols := r.columns()
	if b.scored {
		term := b.arg(q.term)
		cols += `, similarity(l.object_repr, ` + term + `) AS object_repr_similarity` +
			`, similarity(COALESCE(l.changes::text, ''), ` + term + `) AS changes_similarity`
	}
	query := b.with + `SELECT ` + cols +
		` FROM audit_log l LEFT JOIN auth_user u ON u.id = l.actor_id` +
		b.whereClause() + ` ORDER BY ` + b.order
	return query, b.args
}

func (r *AuditRepo) columns() string {
	return `l.id, l.timestamp, l.actor_id, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.` + r.loginField + `, ''), ` +
		`l.object_repr, COALESCE(l.changes::text, ''), l.content_type_id, l.object_id, COALESCE(l.cid, ''), l.action, COALESCE(l.remote_addr, '')`
}

type built struct {
	with   string
	where  []string
	args   []any
	order  string
	scored bool
}

func (b *built) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *built) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

// build translates q into SQL fragments. Similarity candidates come from two
// id lookups (record fields, then actor fields through the join) combined with
// UNION, which also drops ids found by both. Matching is plain ILIKE so the
// trigram indexes on these expressions are used.
func (r *AuditRepo) build(q Query) *built {
	b := &built{order: "l.timestamp DESC, l.id DESC"}

	switch q.mode {
	case modeObject:
		b.where = append(b.where,
			"l.content_type_id = "+b.arg(q.objectTypeID),
			"l.object_id = "+b.arg(q.objectID))
	case modeIDs:
		b.where = append(b.where, "l.id = ANY("+b.arg(pq.Array(q.ids))+")")
	case modeSimilar:
		pattern := b.arg(ContainsPattern(q.term))
		b.scored = true
		b.with = `WITH matched AS (` +
			`SELECT l.id FROM audit_log l WHERE ` + PlainIContains("l.object_repr", pattern) +
			` OR ` + PlainIContains("l.changes::text", pattern) +
			` UNION ` +
			`SELECT l.id FROM audit_log l JOIN auth_user u ON u.id = l.actor_id WHERE ` + PlainIContains("u.first_name", pattern) +
			` OR ` + PlainIContains("u.last_name", pattern) +
			` OR ` + PlainIContains("u."+r.loginField, pattern) +
			`) `
		b.where = append(b.where, "l.id IN (SELECT id FROM matched)")
		b.order = "object_repr_similarity DESC, changes_similarity DESC, l.id DESC"
	}

	if q.action != nil {
		b.where = append(b.where, "l.action = "+b.arg(int(*q.action)))
	}
	if q.contentTypeID != 0 {
		b.where = append(b.where, "l.content_type_id = "+b.arg(q.contentTypeID))
	}
	if q.cid != "" {
		b.where = append(b.where, "l.cid = "+b.arg(q.cid))
	}
	return b
}

// PlainIContains is the case-insensitive containment predicate. It must stay
// ILIKE; UPPER(x) LIKE UPPER(y) cannot use a gin_trgm_ops index.
func PlainIContains(expr, patternArg string) string {
	return expr + " ILIKE " + patternArg
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern wraps term for a LIKE containment test, escaping wildcards in it.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner, scored bool) (models.AuditEntry, error) {
	var (
		e                    models.AuditEntry
		actorID              sql.NullInt64
		first, last, login   string
		changes              string
		action               int
		reprScore, chgsScore float64
	)
	dest := []any{&e.ID, &e.Timestamp, &actorID, &first, &last, &login,
		&e.ObjectRepr, &changes, &e.ContentTypeID, &e.ObjectID, &e.CID, &action, &e.RemoteAddr}
	if scored {
		dest = append(dest, &reprScore, &chgsScore)
	}
	if err := s.Scan(dest...); err != nil {
		return e, err
	}
	if actorID.Valid {
		id := actorID.Int64
		e.ActorID = &id
		e.Actor = &models.Actor{FirstName: first, LastName: last, Login: login}
	}
	if changes != "" {
		e.Changes = json.RawMessage(changes)
	}
	e.Action = models.Action(action)
	if scored {
		e.Similarity = &models.Similarity{ObjectRepr: reprScore, Changes: chgsScore}
	}
	return e, nil
}
