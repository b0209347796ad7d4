package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schema string

// statements splits the embedded schema on ';' and drops empty chunks
// and comment-only lines.
func statements() []string {
	var out []string
	for _, chunk := range strings.Split(schema, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate creates the tables and indexes if they do not exist yet.
// Every statement is idempotent so it is safe to run at each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
