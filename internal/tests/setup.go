// Package tests holds integration tests that need a real PostgreSQL. They skip
// when DATABASE_URL is not set.
package tests

import (
	"context"
	"database/sql"
	"fmt"
)

// TruncateAuthTables truncates auth-related tables for a clean test state.
func TruncateAuthTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE sessions, otp_requests, users RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate auth tables: %w", err)
	}
	return nil
}
