package state

const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		key        TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL,
		runtime    TEXT NOT NULL,
		handle     TEXT NOT NULL DEFAULT '',
		target     TEXT NOT NULL DEFAULT '{}',
		referrers  INTEGER NOT NULL DEFAULT 0 CHECK (referrers >= 0),
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS claims (
		service    TEXT NOT NULL,
		key        TEXT NOT NULL,
		mode       TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (service, key, mode)
	)`,
	`CREATE INDEX IF NOT EXISTS claims_key ON claims (key)`,
	`CREATE TABLE IF NOT EXISTS runtimes (
		key     TEXT PRIMARY KEY,
		runtime TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS starting (
		run_id     TEXT NOT NULL,
		pid        INTEGER NOT NULL,
		key        TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
}
