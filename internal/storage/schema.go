package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates the database tables if they do not exist
func InitSchema(conn *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS celebs (
		celeb_id   TEXT PRIMARY KEY,
		en_name    TEXT NOT NULL DEFAULT '',
		local_name TEXT NOT NULL DEFAULT '',
		zh_name    TEXT NOT NULL DEFAULT '',
		sex        TEXT NOT NULL DEFAULT '',
		age        INTEGER NOT NULL DEFAULT 0,
		country    TEXT NOT NULL DEFAULT '',
		image_url  TEXT NOT NULL DEFAULT '',
		image_id   TEXT NOT NULL DEFAULT '',
		cached_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_celebs_cached_at ON celebs(cached_at);
	CREATE INDEX IF NOT EXISTS idx_celebs_en_name ON celebs(en_name);
	`

	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
