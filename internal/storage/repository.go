package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// UpsertCelebrity inserts or updates a celebrity record.
// The ID is lowercased so later lookups are case-insensitive.
func (db *DB) UpsertCelebrity(ctx context.Context, celeb *Celebrity) error {
	if celeb.CelebID == "" {
		return errors.New("celebrity id is empty")
	}

	query := `
		INSERT INTO celebs (celeb_id, en_name, local_name, zh_name, sex, age, country, image_url, image_id, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(celeb_id) DO UPDATE SET
			en_name = excluded.en_name,
			local_name = excluded.local_name,
			zh_name = excluded.zh_name,
			sex = excluded.sex,
			age = excluded.age,
			country = excluded.country,
			image_url = excluded.image_url,
			image_id = excluded.image_id,
			cached_at = excluded.cached_at
	`
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		strings.ToLower(celeb.CelebID),
		celeb.EnName,
		celeb.LocalName,
		celeb.ZhName,
		celeb.Sex,
		celeb.Age,
		celeb.Country,
		celeb.ImageURL,
		celeb.ImageID,
		time.Now().Unix(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save celebrity",
			"celeb_id", celeb.CelebID,
			"error", err)
		return fmt.Errorf("failed to save celebrity: %w", err)
	}

	// Warn on slow queries (>100ms)
	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "UpsertCelebrity",
			"duration_ms", duration.Milliseconds(),
			"celeb_id", celeb.CelebID)
	}
	return nil
}

// FindCelebrityByID retrieves a non-expired celebrity by ID.
// The lookup is case-insensitive. Returns (nil, nil) when the record
// is missing or its cache entry has expired.
func (db *DB) FindCelebrityByID(ctx context.Context, id string) (*Celebrity, error) {
	query := `
		SELECT celeb_id, en_name, local_name, zh_name, sex, age, country, image_url, image_id, cached_at
		FROM celebs
		WHERE celeb_id = ? AND cached_at > ?
	`

	var celeb Celebrity
	err := db.conn.QueryRowContext(ctx, query, strings.ToLower(id), db.getTTLTimestamp()).Scan(
		&celeb.CelebID,
		&celeb.EnName,
		&celeb.LocalName,
		&celeb.ZhName,
		&celeb.Sex,
		&celeb.Age,
		&celeb.Country,
		&celeb.ImageURL,
		&celeb.ImageID,
		&celeb.CachedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query celebrity",
			"celeb_id", id,
			"error", err)
		return nil, fmt.Errorf("query celebrity: %w", err)
	}

	return &celeb, nil
}

// FindCelebritiesByName searches non-expired celebrities whose English,
// local, or Chinese name contains the given substring (case-insensitive).
// Results are ordered by ID and capped at limit.
func (db *DB) FindCelebritiesByName(ctx context.Context, name string, limit int) ([]Celebrity, error) {
	if len(name) > 100 {
		return nil, errors.New("search term too long")
	}
	if limit <= 0 {
		limit = 50
	}

	start := time.Now()
	pattern := "%" + strings.ToLower(name) + "%"
	query := `
		SELECT celeb_id, en_name, local_name, zh_name, sex, age, country, image_url, image_id, cached_at
		FROM celebs
		WHERE cached_at > ?
		  AND (LOWER(en_name) LIKE ? OR LOWER(local_name) LIKE ? OR LOWER(zh_name) LIKE ?)
		ORDER BY celeb_id
		LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, db.getTTLTimestamp(), pattern, pattern, pattern, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to search celebrities",
			"search_term", name,
			"error", err)
		return nil, fmt.Errorf("search celebrities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	celebs := make([]Celebrity, 0, limit)
	for rows.Next() {
		var celeb Celebrity
		if err := rows.Scan(
			&celeb.CelebID,
			&celeb.EnName,
			&celeb.LocalName,
			&celeb.ZhName,
			&celeb.Sex,
			&celeb.Age,
			&celeb.Country,
			&celeb.ImageURL,
			&celeb.ImageID,
			&celeb.CachedAt,
		); err != nil {
			return nil, fmt.Errorf("scan celebrity: %w", err)
		}
		celebs = append(celebs, celeb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate celebrities: %w", err)
	}

	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "FindCelebritiesByName",
			"duration_ms", duration.Milliseconds(),
			"search_term", name)
	}
	return celebs, nil
}

// CountCelebrities returns the number of non-expired celebrity records
func (db *DB) CountCelebrities(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM celebs WHERE cached_at > ?`, db.getTTLTimestamp()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count celebrities: %w", err)
	}
	return count, nil
}

// CleanupExpired removes celebrity records older than the cache TTL.
// Returns the number of rows deleted.
func (db *DB) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM celebs WHERE cached_at <= ?`, db.getTTLTimestamp())
	if err != nil {
		slog.ErrorContext(ctx, "failed to clean up expired celebrities", "error", err)
		return 0, fmt.Errorf("cleanup expired celebrities: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}
	if deleted > 0 {
		slog.InfoContext(ctx, "removed expired celebrity records", "count", deleted)
	}
	return deleted, nil
}
