// Package store is the §3 Data Model's persistence layer: Channel,
// MediaItem, Collection, a DB-defined schedule fallback, and
// ChannelPlaybackPosition, backed by a pure-Go SQLite file. Grounded on
// internal/plex/dvr.go's sql.Open("sqlite", path) + database/sql idiom;
// this package is the repo's primary datastore rather than a one-off edit
// of someone else's DB.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection. Writes are serialized through mu so
// mutations stay inside short transactions per §5's single-writer policy;
// reads (EPG, lineup) use the pool directly and never hold a transaction
// across I/O.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if absent) the SQLite file at path and applies the
// schema. A single *sql.DB is shared process-wide; modernc.org/sqlite is a
// pure-Go driver so no cgo build step is required.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite-class single-writer; avoid SQLITE_BUSY churn
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	number       TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	group_name   TEXT,
	enabled      INTEGER NOT NULL DEFAULT 1,
	logo         TEXT,
	playout_mode TEXT NOT NULL DEFAULT 'CONTINUOUS',
	profile      TEXT,
	hwaccel      TEXT,
	filters_json TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS media_items (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL DEFAULT 'UNKNOWN',
	source_id   TEXT,
	url         TEXT NOT NULL UNIQUE,
	title       TEXT,
	description TEXT,
	duration    INTEGER,
	thumbnail   TEXT,
	uploader    TEXT,
	upload_date TEXT,
	metadata_json TEXT
);

CREATE TABLE IF NOT EXISTS collections (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL UNIQUE,
	type  TEXT NOT NULL DEFAULT 'MANUAL',
	query TEXT
);

CREATE TABLE IF NOT EXISTS collection_items (
	collection_id TEXT NOT NULL,
	position      INTEGER NOT NULL,
	media_item_id TEXT NOT NULL,
	PRIMARY KEY (collection_id, position)
);

-- Minimal DB-defined schedule fallback: an ordered playlist of media items
-- per channel, used when no YAML schedule file exists for that channel
-- (spec.md §3 Schedule: "either loaded from a YAML file ... or DB-defined").
-- The full ErsatzTV-style ScheduleItem flag set (fill-with-group, tail mode,
-- guide mode, per-item overrides) has no writer in this repo -- the CRUD
-- API that would populate those columns is an out-of-scope external
-- collaborator (spec.md §6) -- so only the fields this repo's read path
-- actually consumes are modeled.
CREATE TABLE IF NOT EXISTS channel_schedule_items (
	channel_number TEXT NOT NULL,
	position       INTEGER NOT NULL,
	media_item_id  TEXT NOT NULL,
	custom_title   TEXT,
	PRIMARY KEY (channel_number, position)
);

CREATE TABLE IF NOT EXISTS channel_playback_position (
	channel_number       TEXT PRIMARY KEY,
	playout_start_time   TEXT NOT NULL,
	last_item_index      INTEGER NOT NULL DEFAULT 0,
	last_item_media_id   TEXT,
	last_position_update TEXT NOT NULL,
	total_items_watched  INTEGER NOT NULL DEFAULT 0
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
