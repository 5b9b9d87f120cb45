package db

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_flash_execution_log",
		Up: `
			CREATE TABLE IF NOT EXISTS flash_execution_log (
				id TEXT PRIMARY KEY,
				post_id TEXT NOT NULL,
				feature_type TEXT NOT NULL,
				success BOOLEAN NOT NULL DEFAULT FALSE,
				execution_time_ms BIGINT NOT NULL DEFAULT 0,
				tokens_used INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_execution_log_post_id ON flash_execution_log(post_id);
			CREATE INDEX IF NOT EXISTS idx_execution_log_created_at ON flash_execution_log(created_at);
		`,
		Down: `DROP TABLE IF EXISTS flash_execution_log;`,
	},
	{
		Version: 2,
		Name:    "create_content_placeholders",
		Up: `
			CREATE TABLE IF NOT EXISTS content_placeholders (
				id TEXT NOT NULL,
				post_id TEXT NOT NULL,
				placeholder_type TEXT NOT NULL,
				position TEXT NOT NULL,
				context TEXT,
				priority TEXT,
				metadata TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (post_id, id)
			);
			CREATE INDEX IF NOT EXISTS idx_placeholders_post_type ON content_placeholders(post_id, placeholder_type);
		`,
		Down: `DROP TABLE IF EXISTS content_placeholders;`,
	},
	{
		Version: 3,
		Name:    "create_blog_posts",
		Up: `
			CREATE TABLE IF NOT EXISTS blog_posts (
				id TEXT PRIMARY KEY,
				user_name TEXT NOT NULL,
				title TEXT NOT NULL,
				slug TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				published BOOLEAN NOT NULL DEFAULT FALSE,
				created_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_blog_posts_user ON blog_posts(user_name, published, created_date);
		`,
		Down: `DROP TABLE IF EXISTS blog_posts;`,
	},
	{
		Version: 4,
		Name:    "create_user_website_styles",
		Up: `
			CREATE TABLE IF NOT EXISTS user_website_styles (
				user_name TEXT PRIMARY KEY,
				styles TEXT NOT NULL DEFAULT '{}',
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
		Down: `DROP TABLE IF EXISTS user_website_styles;`,
	},
}

// Migrate runs all pending PostgreSQL migrations
func Migrate(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	sortedMigrations := make([]Migration, len(postgresMigrations))
	copy(sortedMigrations, postgresMigrations)
	sort.Slice(sortedMigrations, func(i, j int) bool {
		return sortedMigrations[i].Version < sortedMigrations[j].Version
	})

	for _, m := range sortedMigrations {
		if m.Version <= currentVersion {
			continue
		}

		if err := runMigration(db, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// getCurrentVersion returns the current migration version
func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration
func runMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// Rollback rolls back the last migration
func Rollback(db *sql.DB) error {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var targetMigration *Migration
	for i := range postgresMigrations {
		if postgresMigrations[i].Version == currentVersion {
			targetMigration = &postgresMigrations[i]
			break
		}
	}

	if targetMigration == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(targetMigration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit()
}
