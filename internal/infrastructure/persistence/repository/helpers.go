// Package repository implements the application repository ports on SQLite.
// Money is stored as decimal text, nested lists as JSON text.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/sqlite"
)

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func toJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(b), nil
}

func fromJSON(raw string, v interface{}) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode json column: %w", err)
	}
	return nil
}

// utc normalizes times before they are written so that text comparisons in
// SQL order correctly
func utc(t time.Time) time.Time {
	return t.UTC()
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func insertID(result sql.Result) (int64, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// latestNumber returns the document number in column with the highest
// numeric suffix after prefix, or "" when none exists
func latestNumber(ctx context.Context, exec sqlite.Executor, table, column, prefix string) (string, error) {
	query := fmt.Sprintf(
		`SELECT %[2]s FROM %[1]s WHERE %[2]s LIKE ? ORDER BY CAST(substr(%[2]s, ?) AS INTEGER) DESC LIMIT 1`,
		table, column,
	)

	var number string
	err := exec.QueryRowContext(ctx, query, prefix+"%", len(prefix)+1).Scan(&number)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest %s: %w", column, err)
	}
	return number, nil
}
