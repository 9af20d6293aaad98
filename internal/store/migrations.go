package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deadlines (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	course          TEXT NOT NULL DEFAULT '',
	task            TEXT NOT NULL,
	due_date        DATETIME NOT NULL,
	source_due_date DATETIME,
	priority        TEXT NOT NULL DEFAULT 'medium',
	completed       INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	completed_at    DATETIME,
	source          TEXT NOT NULL DEFAULT '',
	source_item_id  TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deadlines_user ON deadlines(user_id);
CREATE INDEX IF NOT EXISTS idx_deadlines_due_date ON deadlines(due_date);
CREATE INDEX IF NOT EXISTS idx_deadlines_ownership
	ON deadlines(user_id, source, source_item_id);

CREATE TABLE IF NOT EXISTS schedule_events (
	id                   TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL,
	title                TEXT NOT NULL,
	start_time           DATETIME NOT NULL,
	duration_minutes     INTEGER NOT NULL,
	workload             TEXT NOT NULL DEFAULT 'medium',
	location             TEXT NOT NULL DEFAULT '',
	recurrence_parent_id TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schedule_user_start
	ON schedule_events(user_id, start_time);
CREATE INDEX IF NOT EXISTS idx_schedule_recurrence
	ON schedule_events(recurrence_parent_id);

CREATE TABLE IF NOT EXISTS scheduled_notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT 'medium',
	source     TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	actions    TEXT NOT NULL DEFAULT '[]',
	send_at    DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_notifications_send_at
	ON scheduled_notifications(send_at);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT 'medium',
	source     TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	actions    TEXT NOT NULL DEFAULT '[]',
	read       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, read);

CREATE TABLE IF NOT EXISTS sync_attempts (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	integration  TEXT NOT NULL,
	success      INTEGER NOT NULL CHECK(success IN (0, 1)),
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	root_cause   TEXT NOT NULL DEFAULT '',
	attempted_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_attempts_integration
	ON sync_attempts(integration, attempted_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_deadlines_completed_due
	ON deadlines(completed, due_date);

CREATE INDEX IF NOT EXISTS idx_scheduled_notifications_user_send
	ON scheduled_notifications(user_id, send_at);

CREATE INDEX IF NOT EXISTS idx_sync_attempts_user
	ON sync_attempts(user_id, attempted_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
