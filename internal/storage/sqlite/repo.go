package sqlite

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"

	"sparkify/internal/storage"
	"sparkify/internal/storage/sqldb"
)

// Kind is the storage.kind that selects this backend.
const Kind = "sqlite"

func init() {
	storage.Register(Kind, NewRepository)
}

// Statements is the SQLite dialect.
//
// Key design points vs Postgres:
//   - Dimensions use "INSERT OR IGNORE", which relies on the PRIMARY KEY.
//   - users uses the UPSERT clause (SQLite >= 3.24, bundled by modernc).
//   - start_time is bound as time.Time; modernc stores it as TEXT, which is
//     stable for equal instants, so the time PRIMARY KEY still deduplicates.
var Statements = sqldb.Statements{
	CreateTables: []string{
		`CREATE TABLE IF NOT EXISTS songs (
  song_id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  artist_id TEXT NOT NULL,
  year INTEGER,
  duration REAL
);`,
		`CREATE TABLE IF NOT EXISTS artists (
  artist_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  location TEXT,
  latitude REAL,
  longitude REAL
);`,
		`CREATE TABLE IF NOT EXISTS "time" (
  start_time TIMESTAMP PRIMARY KEY,
  hour INTEGER NOT NULL,
  day INTEGER NOT NULL,
  week INTEGER NOT NULL,
  month INTEGER NOT NULL,
  year INTEGER NOT NULL,
  weekday INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS users (
  user_id TEXT PRIMARY KEY,
  first_name TEXT,
  last_name TEXT,
  gender TEXT,
  level TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS songplays (
  songplay_id INTEGER PRIMARY KEY AUTOINCREMENT,
  start_time TIMESTAMP NOT NULL,
  user_id TEXT NOT NULL,
  level TEXT NOT NULL,
  song_id TEXT,
  artist_id TEXT,
  session_id INTEGER NOT NULL,
  location TEXT,
  user_agent TEXT
);`,
	},

	InsertSong: `INSERT OR IGNORE INTO songs (song_id, title, artist_id, year, duration)
VALUES (?, ?, ?, ?, ?);`,

	InsertArtist: `INSERT OR IGNORE INTO artists (artist_id, name, location, latitude, longitude)
VALUES (?, ?, ?, ?, ?);`,

	UpsertTime: `INSERT OR IGNORE INTO "time" (start_time, hour, day, week, month, year, weekday)
VALUES (?, ?, ?, ?, ?, ?, ?);`,

	UpsertUser: `INSERT INTO users (user_id, first_name, last_name, gender, level)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
  first_name = excluded.first_name,
  last_name = excluded.last_name,
  gender = excluded.gender,
  level = excluded.level;`,

	InsertSongplay: `INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,

	LookupSong: `SELECT s.song_id, s.artist_id
FROM songs s
JOIN artists a ON a.artist_id = s.artist_id
WHERE s.title = ? AND a.name = ? AND ABS(s.duration - ?) <= ?
ORDER BY s.song_id
LIMIT 1;`,
}

// NewRepository opens a SQLite database. The pool is capped at one
// connection: the pipeline is sequential and SQLite has a single writer.
func NewRepository(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	repo, err := sqldb.Open(ctx, "sqlite", cfg.DSN, Statements, sqldb.Options{MaxOpenConns: 1})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cfg.DSN, err)
	}
	return repo, nil
}
