package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/letieu/idea-store/config"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

//go:embed schema.sql
var schema string

const ideaColumns = "id, created_at, user_id, content, priority_score, used_at, status"

var ideaColumnSet = map[string]bool{
	"id": true, "created_at": true, "user_id": true, "content": true,
	"priority_score": true, "used_at": true, "status": true,
}

// DB is a SQL database holding the same tables as the hosted backend. It is
// used with Turso (libsql) in place of the PostgREST API.
type DB struct {
	conn *sql.DB
}

// NewDB connects to the libsql database named in cfg.
func NewDB(cfg *config.Config) (*DB, error) {
	dsn := cfg.LibSQL.URL
	if cfg.LibSQL.Token != "" {
		dsn = fmt.Sprintf("%s?authToken=%s", cfg.LibSQL.URL, cfg.LibSQL.Token)
	}
	return OpenSQL("libsql", dsn)
}

// OpenSQL opens and pings a database/sql connection with the given driver.
func OpenSQL(driver, dsn string) (*DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates any missing tables. Existing tables are left as they are.
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w\n%s", err, stmt)
		}
	}

	return tx.Commit()
}

// Ping runs a trivial query against the users table.
func (db *DB) Ping(ctx context.Context) error {
	var n int
	return db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM (SELECT id FROM users LIMIT 1)`).Scan(&n)
}

func (db *DB) Ideas() *SQLIdeas {
	return &SQLIdeas{conn: db.conn}
}

// SQLIdeas serves the ideas table with the same contract as
// Client.Ideas().
type SQLIdeas struct {
	conn *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLIdeas) Select(ctx context.Context, q Query) ([]Idea, error) {
	where, args, err := whereClause(q.Filters)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(q.Order)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + ideaColumns + ` FROM ideas` + where + orderBy
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ideas := []Idea{}
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

func (s *SQLIdeas) Insert(ctx context.Context, row IdeaInsert) (Idea, error) {
	cols, args, err := ideaAssignments(row.UserID, row.Content, row.PriorityScore, row.UsedAt, row.Status, nil)
	if err != nil {
		return Idea{}, err
	}

	var query string
	if len(cols) == 0 {
		query = `INSERT INTO ideas DEFAULT VALUES RETURNING ` + ideaColumns
	} else {
		query = `INSERT INTO ideas (` + strings.Join(cols, ", ") + `) VALUES (?` +
			strings.Repeat(",?", len(cols)-1) + `) RETURNING ` + ideaColumns
	}

	return scanIdea(s.conn.QueryRowContext(ctx, query, args...))
}

func (s *SQLIdeas) Update(ctx context.Context, id int64, patch IdeaUpdate) (Idea, error) {
	cols, args, err := ideaAssignments(patch.UserID, patch.Content, patch.PriorityScore, patch.UsedAt, patch.Status, patch.Null)
	if err != nil {
		return Idea{}, err
	}

	var row *sql.Row
	if len(cols) == 0 {
		row = s.conn.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = ?`, id)
	} else {
		query := `UPDATE ideas SET ` + strings.Join(cols, " = ?, ") + ` = ? WHERE id = ? RETURNING ` + ideaColumns
		row = s.conn.QueryRowContext(ctx, query, append(args, id)...)
	}

	idea, err := scanIdea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Idea{}, fmt.Errorf("update ideas id %d: %w", id, ErrNotFound)
	}
	return idea, err
}

func (s *SQLIdeas) Delete(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM ideas WHERE id = ?`, id)
	return err
}

func (s *SQLIdeas) UpdateIn(ctx context.Context, ids []int64, patch IdeaUpdate) error {
	cols, args, err := ideaAssignments(patch.UserID, patch.Content, patch.PriorityScore, patch.UsedAt, patch.Status, patch.Null)
	if err != nil {
		return err
	}
	if len(ids) == 0 || len(cols) == 0 {
		return nil
	}

	query := `UPDATE ideas SET ` + strings.Join(cols, " = ?, ") + ` = ? WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	for _, id := range ids {
		args = append(args, id)
	}
	_, err = s.conn.ExecContext(ctx, query, args...)
	return err
}

func ideaAssignments(userID *int64, content *string, priority *float64, usedAt *time.Time, status *string, nulls []string) ([]string, []any, error) {
	var cols []string
	var args []any
	if userID != nil {
		cols = append(cols, "user_id")
		args = append(args, *userID)
	}
	if content != nil {
		cols = append(cols, "content")
		args = append(args, *content)
	}
	if priority != nil {
		cols = append(cols, "priority_score")
		args = append(args, *priority)
	}
	if usedAt != nil {
		cols = append(cols, "used_at")
		args = append(args, formatTime(*usedAt))
	}
	if status != nil {
		cols = append(cols, "status")
		args = append(args, *status)
	}
	for _, col := range nulls {
		if !ideaColumnSet[col] || col == "id" || col == "created_at" {
			return nil, nil, fmt.Errorf("column %s cannot be cleared", col)
		}
		if slices.Contains(cols, col) {
			return nil, nil, fmt.Errorf("column %s is both set and cleared", col)
		}
		cols = append(cols, col)
		args = append(args, nil)
	}
	return cols, args, nil
}

func scanIdea(row rowScanner) (Idea, error) {
	var (
		idea      Idea
		createdAt string
		userID    sql.NullInt64
		content   sql.NullString
		priority  sql.NullFloat64
		usedAt    sql.NullString
		status    sql.NullString
	)
	if err := row.Scan(&idea.ID, &createdAt, &userID, &content, &priority, &usedAt, &status); err != nil {
		return Idea{}, err
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return Idea{}, fmt.Errorf("idea %d created_at: %w", idea.ID, err)
	}
	idea.CreatedAt = t

	if userID.Valid {
		idea.UserID = &userID.Int64
	}
	if content.Valid {
		idea.Content = &content.String
	}
	if priority.Valid {
		idea.PriorityScore = &priority.Float64
	}
	if usedAt.Valid {
		t, err := parseTime(usedAt.String)
		if err != nil {
			return Idea{}, fmt.Errorf("idea %d used_at: %w", idea.ID, err)
		}
		idea.UsedAt = &t
	}
	if status.Valid {
		idea.Status = &status.String
	}
	return idea, nil
}

func whereClause(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var conds []string
	var args []any
	for _, f := range filters {
		if !ideaColumnSet[f.Column] {
			return "", nil, fmt.Errorf("unknown column %q", f.Column)
		}
		switch f.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
			conds = append(conds, f.Column+" "+sqlOperators[f.Op]+" ?")
			args = append(args, sqlArg(f.Value))
		case OpLike:
			conds = append(conds, f.Column+" LIKE ?")
			args = append(args, likePattern(f.Value))
		case OpILike:
			conds = append(conds, "LOWER("+f.Column+") LIKE LOWER(?)")
			args = append(args, likePattern(f.Value))
		case OpIn:
			vals, _ := f.Value.([]any)
			if len(vals) == 0 {
				conds = append(conds, "0")
				continue
			}
			conds = append(conds, f.Column+" IN (?"+strings.Repeat(",?", len(vals)-1)+")")
			for _, v := range vals {
				args = append(args, sqlArg(v))
			}
		case OpIs:
			if f.Value == nil {
				conds = append(conds, f.Column+" IS NULL")
			} else {
				conds = append(conds, f.Column+" IS ?")
				args = append(args, sqlArg(f.Value))
			}
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

var sqlOperators = map[Op]string{
	OpEq: "=", OpNeq: "<>", OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<=",
}

func orderClause(orders []Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(orders)+1)
	hasID := false
	for _, o := range orders {
		if !ideaColumnSet[o.Column] {
			return "", fmt.Errorf("unknown column %q", o.Column)
		}
		hasID = hasID || o.Column == "id"
		parts = append(parts, o.Column+" "+direction(o.Ascending))
	}
	// created_at has millisecond resolution, id breaks ties.
	if !hasID {
		parts = append(parts, "id "+direction(orders[len(orders)-1].Ascending))
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func direction(asc bool) string {
	if asc {
		return "ASC"
	}
	return "DESC"
}

func sqlArg(v any) any {
	if t, ok := v.(time.Time); ok {
		return formatTime(t)
	}
	return v
}

func likePattern(v any) string {
	return strings.ReplaceAll(fmt.Sprint(v), "*", "%")
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
