package duckdb

import (
	"context"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"

	"sparkify/internal/storage"
	"sparkify/internal/storage/sqldb"
)

// Kind is the storage.kind that selects this backend.
const Kind = "duckdb"

func init() {
	storage.Register(Kind, NewRepository)
}

// Statements is the DuckDB dialect. songplay_id comes from a sequence since
// DuckDB has no SERIAL.
var Statements = sqldb.Statements{
	CreateTables: []string{
		`CREATE SEQUENCE IF NOT EXISTS songplays_id_seq START 1;`,
		`CREATE TABLE IF NOT EXISTS songs (
  song_id VARCHAR PRIMARY KEY,
  title VARCHAR NOT NULL,
  artist_id VARCHAR NOT NULL,
  year INTEGER,
  duration DOUBLE
);`,
		`CREATE TABLE IF NOT EXISTS artists (
  artist_id VARCHAR PRIMARY KEY,
  name VARCHAR NOT NULL,
  location VARCHAR,
  latitude DOUBLE,
  longitude DOUBLE
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
  user_id VARCHAR PRIMARY KEY,
  first_name VARCHAR,
  last_name VARCHAR,
  gender VARCHAR,
  level VARCHAR NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS songplays (
  songplay_id BIGINT PRIMARY KEY DEFAULT nextval('songplays_id_seq'),
  start_time TIMESTAMP NOT NULL,
  user_id VARCHAR NOT NULL,
  level VARCHAR NOT NULL,
  song_id VARCHAR,
  artist_id VARCHAR,
  session_id BIGINT NOT NULL,
  location VARCHAR,
  user_agent VARCHAR
);`,
	},

	InsertSong: `INSERT INTO songs (song_id, title, artist_id, year, duration)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (song_id) DO NOTHING;`,

	InsertArtist: `INSERT INTO artists (artist_id, name, location, latitude, longitude)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (artist_id) DO NOTHING;`,

	UpsertTime: `INSERT INTO "time" (start_time, hour, day, week, month, year, weekday)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (start_time) DO NOTHING;`,

	UpsertUser: `INSERT INTO users (user_id, first_name, last_name, gender, level)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  gender = EXCLUDED.gender,
  level = EXCLUDED.level;`,

	InsertSongplay: `INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,

	LookupSong: `SELECT s.song_id, s.artist_id
FROM songs s
JOIN artists a ON a.artist_id = s.artist_id
WHERE s.title = ? AND a.name = ? AND ABS(s.duration - ?) <= ?
ORDER BY s.song_id
LIMIT 1;`,
}

// NewRepository opens a DuckDB database file. An empty DSN opens an
// in-memory database.
func NewRepository(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	repo, err := sqldb.Open(ctx, "duckdb", cfg.DSN, Statements, sqldb.Options{MaxOpenConns: 1})
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", cfg.DSN, err)
	}
	return repo, nil
}
