package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/flash/models"
)

// DB wraps the database connection and provides data access methods
type DB struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new database connection
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	// Run PostgreSQL migrations
	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// RecordExecution appends one audit row to the execution log.
func (db *DB) RecordExecution(rec *models.ExecutionLogRecord) error {
	query := `
		INSERT INTO flash_execution_log (id, post_id, feature_type, success, execution_time_ms, tokens_used, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.conn.Exec(
		query,
		rec.ID,
		rec.PostID,
		rec.FeatureType,
		rec.Success,
		rec.ExecutionTimeMs,
		rec.TokensUsed,
		rec.ErrorMessage,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	return nil
}

// ListExecutions returns execution log rows, newest first. An empty postID
// returns rows across all posts.
func (db *DB) ListExecutions(postID string, limit int) ([]models.ExecutionLogRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, post_id, feature_type, success, execution_time_ms, tokens_used, error_message, created_at
		FROM flash_execution_log
	`
	args := []interface{}{}
	if postID != "" {
		query += " WHERE post_id = $1"
		args = append(args, postID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution log: %w", err)
	}
	defer rows.Close()

	records := []models.ExecutionLogRecord{}
	for rows.Next() {
		var rec models.ExecutionLogRecord
		var errMsg sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.PostID,
			&rec.FeatureType,
			&rec.Success,
			&rec.ExecutionTimeMs,
			&rec.TokensUsed,
			&errMsg,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		rec.ErrorMessage = errMsg.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SavePlaceholders replaces the stored placeholders for each kind present
// in the batch. Fragments of a kind not present are left untouched.
func (db *DB) SavePlaceholders(postID string, fragments []models.PlaceholderFragment) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	kinds := map[string]bool{}
	for _, f := range fragments {
		kinds[f.Kind] = true
	}
	for kind := range kinds {
		if _, err := tx.Exec(
			"DELETE FROM content_placeholders WHERE post_id = $1 AND placeholder_type = $2",
			postID, kind,
		); err != nil {
			return fmt.Errorf("failed to delete old placeholders: %w", err)
		}
	}

	query := `
		INSERT INTO content_placeholders (id, post_id, placeholder_type, position, context, priority, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, f := range fragments {
		metadata, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to marshal placeholder %s: %w", f.ID, err)
		}

		if _, err := tx.Exec(
			query,
			f.ID,
			postID,
			f.Kind,
			f.Position,
			f.Context,
			string(f.Priority),
			string(metadata),
			time.Now(),
		); err != nil {
			return fmt.Errorf("failed to save placeholder %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// PlaceholdersByPost returns the stored placeholders for a post, optionally
// filtered by kind.
func (db *DB) PlaceholdersByPost(postID, kind string) ([]models.PlaceholderFragment, error) {
	query := "SELECT metadata FROM content_placeholders WHERE post_id = $1"
	args := []interface{}{postID}
	if kind != "" {
		query += " AND placeholder_type = $2"
		args = append(args, kind)
	}
	query += " ORDER BY id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query placeholders: %w", err)
	}
	defer rows.Close()

	fragments := []models.PlaceholderFragment{}
	for rows.Next() {
		var metadata string
		if err := rows.Scan(&metadata); err != nil {
			return nil, fmt.Errorf("failed to scan placeholder row: %w", err)
		}
		var f models.PlaceholderFragment
		if err := json.Unmarshal([]byte(metadata), &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal placeholder: %w", err)
		}
		fragments = append(fragments, f)
	}

	return fragments, rows.Err()
}

// RecentPublishedPosts returns the tenant's most recent published posts,
// excluding the post being augmented.
func (db *DB) RecentPublishedPosts(userName, excludePostID string, limit int) ([]models.PublishedPage, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, title, slug, content, created_date
		FROM blog_posts
		WHERE user_name = $1 AND published = TRUE AND id != $2
		ORDER BY created_date DESC
		LIMIT $3
	`

	rows, err := db.conn.Query(query, userName, excludePostID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query published posts: %w", err)
	}
	defer rows.Close()

	pages := []models.PublishedPage{}
	for rows.Next() {
		var p models.PublishedPage
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.CreatedDate); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// SavePublishedPost upserts a post row. Used by tests and by tenants that
// sync their post catalog into the service.
func (db *DB) SavePublishedPost(p *models.PublishedPage, userName string, published bool) error {
	query := `
		INSERT INTO blog_posts (id, user_name, title, slug, content, published, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			slug = excluded.slug,
			content = excluded.content,
			published = excluded.published
	`

	createdDate := p.CreatedDate
	if createdDate.IsZero() {
		createdDate = time.Now()
	}

	_, err := db.conn.Exec(query, p.ID, userName, p.Title, p.Slug, p.Content, published, createdDate)
	if err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}

	return nil
}

// StylesByUser returns the tenant's saved style tokens, or nil when the
// tenant has none stored.
func (db *DB) StylesByUser(userName string) (*models.StyleTokens, error) {
	var stylesJSON string
	query := "SELECT styles FROM user_website_styles WHERE user_name = $1"

	err := db.conn.QueryRow(query, userName).Scan(&stylesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query styles: %w", err)
	}

	var tokens models.StyleTokens
	if err := json.Unmarshal([]byte(stylesJSON), &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal styles: %w", err)
	}

	return &tokens, nil
}

// SaveStyles upserts the tenant's style tokens.
func (db *DB) SaveStyles(userName string, tokens *models.StyleTokens) error {
	stylesJSON, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal styles: %w", err)
	}

	query := `
		INSERT INTO user_website_styles (user_name, styles, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(user_name) DO UPDATE SET
			styles = excluded.styles,
			updated_at = excluded.updated_at
	`

	if _, err := db.conn.Exec(query, userName, string(stylesJSON), time.Now()); err != nil {
		return fmt.Errorf("failed to save styles: %w", err)
	}

	return nil
}

// Count returns the total number of execution log rows
func (db *DB) Count() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM flash_execution_log").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return count, nil
}
