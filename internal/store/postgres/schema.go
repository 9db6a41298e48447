package postgres

import (
	"context"
	"fmt"
)

// schema is idempotent. Position uniqueness is deferred to commit so a
// transaction can shift a whole scope one row at a time.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'member')),
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));

CREATE TABLE IF NOT EXISTS boards (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 50),
	owner_id   UUID NOT NULL REFERENCES users (id),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS board_members (
	seq      BIGSERIAL,
	board_id UUID NOT NULL REFERENCES boards (id) ON DELETE CASCADE,
	user_id  UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	PRIMARY KEY (board_id, user_id)
);
CREATE INDEX IF NOT EXISTS board_members_user_idx ON board_members (user_id);

CREATE TABLE IF NOT EXISTS lists (
	id         UUID PRIMARY KEY,
	board_id   UUID NOT NULL REFERENCES boards (id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	position   INT NOT NULL CHECK (position >= 0),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT lists_id_board_key UNIQUE (id, board_id),
	CONSTRAINT lists_board_position_key UNIQUE (board_id, position) DEFERRABLE INITIALLY DEFERRED
);

CREATE TABLE IF NOT EXISTS tasks (
	id             UUID PRIMARY KEY,
	board_id       UUID NOT NULL,
	list_id        UUID NOT NULL,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	assigned_users UUID[] NOT NULL DEFAULT '{}',
	position       INT NOT NULL CHECK (position >= 0),
	is_completed   BOOLEAN NOT NULL DEFAULT false,
	completed_by   UUID,
	completed_at   TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	CONSTRAINT tasks_list_fkey FOREIGN KEY (list_id, board_id)
		REFERENCES lists (id, board_id) ON DELETE CASCADE,
	CONSTRAINT tasks_completion_stamp CHECK (
		(is_completed AND completed_by IS NOT NULL AND completed_at IS NOT NULL) OR
		(NOT is_completed AND completed_by IS NULL AND completed_at IS NULL)
	),
	CONSTRAINT tasks_list_position_key UNIQUE (list_id, position) DEFERRABLE INITIALLY DEFERRED
);
CREATE INDEX IF NOT EXISTS tasks_board_idx ON tasks (board_id);

CREATE TABLE IF NOT EXISTS activity (
	id           UUID PRIMARY KEY,
	principal_id UUID NOT NULL,
	board_id     UUID NOT NULL REFERENCES boards (id) ON DELETE CASCADE,
	action       TEXT NOT NULL,
	task_id      UUID,
	detail       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS activity_board_created_idx ON activity (board_id, created_at DESC);
`

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres.Store.Migrate: %w", err)
	}
	return nil
}
