package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// schema is applied on every start; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

-- Project counters for card ticket numbers
CREATE TABLE IF NOT EXISTS project_counters (
	project_id INTEGER PRIMARY KEY,
	next_card_number INTEGER NOT NULL DEFAULT 1,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	role TEXT NOT NULL,
	joined_at DATETIME NOT NULL,
	PRIMARY KEY (project_id, user_id),
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_project_members_user ON project_members(user_id);

-- Columns form a linked list per project; the archive column is unlinked
CREATE TABLE IF NOT EXISTS columns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'standard',
	prev_id INTEGER,
	next_id INTEGER,
	holds_completed BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (prev_id) REFERENCES columns(id) ON DELETE SET NULL,
	FOREIGN KEY (next_id) REFERENCES columns(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_columns_project ON columns(project_id);

-- Only one column per project can hold completed cards
CREATE UNIQUE INDEX IF NOT EXISTS idx_columns_completed_per_project
ON columns(project_id) WHERE holds_completed = 1;

CREATE TABLE IF NOT EXISTS stories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	parent_id INTEGER,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	points INTEGER,
	created_by INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (parent_id) REFERENCES stories(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_stories_project ON stories(project_id);

CREATE TABLE IF NOT EXISTS cards (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	column_id INTEGER NOT NULL,
	story_id INTEGER,
	number INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'medium',
	position INTEGER NOT NULL,
	assignee_id INTEGER,
	created_by INTEGER NOT NULL,
	due_date DATETIME,
	archived_at DATETIME,
	archived_from_column_id INTEGER,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (project_id, number),
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (column_id) REFERENCES columns(id) ON DELETE CASCADE,
	FOREIGN KEY (story_id) REFERENCES stories(id) ON DELETE SET NULL,
	FOREIGN KEY (assignee_id) REFERENCES users(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_column ON cards(column_id, position);
CREATE INDEX IF NOT EXISTS idx_cards_story ON cards(story_id);

CREATE TABLE IF NOT EXISTS labels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '#7D56F4',
	UNIQUE (project_id, name),
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS card_labels (
	card_id INTEGER NOT NULL,
	label_id INTEGER NOT NULL,
	PRIMARY KEY (card_id, label_id),
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE,
	FOREIGN KEY (label_id) REFERENCES labels(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	card_id INTEGER NOT NULL,
	author_id INTEGER NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE,
	FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_comments_card ON comments(card_id);

CREATE TABLE IF NOT EXISTS invitations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	email TEXT NOT NULL,
	role TEXT NOT NULL,
	token_hash TEXT NOT NULL UNIQUE,
	invited_by INTEGER NOT NULL,
	expires_at DATETIME NOT NULL,
	accepted_at DATETIME,
	accepted_by INTEGER,
	revoked_at DATETIME,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_invitations_project_email ON invitations(project_id, email);

CREATE TABLE IF NOT EXISTS time_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	card_id INTEGER NOT NULL,
	project_id INTEGER NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME NOT NULL,
	duration_seconds INTEGER NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_time_entries_card ON time_entries(card_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_project ON time_entries(project_id, started_at);

-- At most one running timer per user
CREATE TABLE IF NOT EXISTS active_timers (
	user_id INTEGER PRIMARY KEY,
	card_id INTEGER NOT NULL,
	project_id INTEGER NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	project_id INTEGER,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	dedupe_key TEXT,
	read_at DATETIME,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_dedupe
ON notifications(user_id, dedupe_key) WHERE dedupe_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS attachments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	card_id INTEGER NOT NULL,
	project_id INTEGER NOT NULL,
	uploaded_by INTEGER NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_attachments_card ON attachments(card_id);
CREATE INDEX IF NOT EXISTS idx_attachments_hash ON attachments(content_hash);
`

// archiveIndex enforces a single archive column per project. It is created
// after existing duplicates have been merged.
const archiveIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_columns_archive_per_project
ON columns(project_id) WHERE kind = 'archive'`

// Migrate creates the database schema if needed
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := dedupeArchiveColumns(ctx, db); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, archiveIndex); err != nil {
		return fmt.Errorf("failed to create archive index: %w", err)
	}

	return nil
}

// dedupeArchiveColumns merges duplicate archive columns left behind by
// data written before the unique index existed.
func dedupeArchiveColumns(ctx context.Context, db *sql.DB) error {
	projectIDs, err := New(db).ProjectsWithDuplicateArchiveColumns(ctx)
	if err != nil {
		return fmt.Errorf("failed to find duplicate archive columns: %w", err)
	}

	for _, projectID := range projectIDs {
		err := withTx(ctx, db, func(tx *sql.Tx) error {
			_, err := New(tx).ReconcileArchiveColumns(ctx, projectID)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to reconcile archive columns for project %d: %w", projectID, err)
		}
		slog.Info("merged duplicate archive columns", "project_id", projectID)
	}

	return nil
}
