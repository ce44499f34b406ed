package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Only durable records live here. Round content is never stored.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		room_code TEXT NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
		identity TEXT NOT NULL,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('owner', 'player')),
		joined_at BIGINT NOT NULL,
		PRIMARY KEY (room_code, identity)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_members_identity ON members(identity)`,
}

// createSchema is safe to call multiple times.
func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $N for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
