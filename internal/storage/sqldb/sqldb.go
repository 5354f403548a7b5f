// Package sqldb implements storage.Repository on top of database/sql for
// backends that only differ by SQL dialect (sqlite, mssql, duckdb).
//
// Each backend supplies a Statements set; sqldb owns connection handling,
// per-file transactions and argument binding.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sparkify/internal/storage"
)

// Statements is one dialect's SQL. Every statement is parameterized and
// receives its arguments in the order documented per field.
type Statements struct {
	// CreateTables run in order by EnsureTables.
	CreateTables []string

	// song_id, title, artist_id, year, duration
	InsertSong string
	// artist_id, name, location, latitude, longitude
	InsertArtist string
	// start_time, hour, day, week, month, year, weekday
	UpsertTime string
	// user_id, first_name, last_name, gender, level
	UpsertUser string
	// start_time, user_id, level, song_id, artist_id, session_id, location, user_agent
	InsertSongplay string
	// title, artist name, duration, tolerance -> (song_id, artist_id)
	LookupSong string
}

// Validate reports the first missing statement.
func (s Statements) Validate() error {
	for name, q := range map[string]string{
		"InsertSong":     s.InsertSong,
		"InsertArtist":   s.InsertArtist,
		"UpsertTime":     s.UpsertTime,
		"UpsertUser":     s.UpsertUser,
		"InsertSongplay": s.InsertSongplay,
		"LookupSong":     s.LookupSong,
	} {
		if q == "" {
			return fmt.Errorf("sqldb: statement %s is empty", name)
		}
	}
	return nil
}

// Options tunes the connection pool.
type Options struct {
	// MaxOpenConns <= 0 leaves the database/sql default.
	MaxOpenConns int
}

// Repo is a database/sql backed storage.Repository.
type Repo struct {
	db    *sql.DB
	stmts Statements
}

// Open opens driverName/dsn, pings it and returns a Repo.
func Open(ctx context.Context, driverName, dsn string, stmts Statements, opts Options) (*Repo, error) {
	if err := stmts.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, stmts: stmts}, nil
}

// NewWithDB wraps an already open *sql.DB. Used by tests.
func NewWithDB(db *sql.DB, stmts Statements) (*Repo, error) {
	if err := stmts.Validate(); err != nil {
		return nil, err
	}
	return &Repo{db: db, stmts: stmts}, nil
}

// DB exposes the underlying handle for read-side checks.
func (r *Repo) DB() *sql.DB { return r.db }

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTables runs the dialect DDL. Statements must be idempotent
// (CREATE TABLE IF NOT EXISTS or an equivalent guard).
func (r *Repo) EnsureTables(ctx context.Context) error {
	for _, q := range r.stmts.CreateTables {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx, stmts: r.stmts}, nil
}

// Tx is one file's unit of work.
type Tx struct {
	tx    *sql.Tx
	stmts Statements
}

func (t *Tx) InsertSong(ctx context.Context, row storage.SongRow) error {
	_, err := t.tx.ExecContext(ctx, t.stmts.InsertSong,
		row.SongID, row.Title, row.ArtistID, row.Year, row.Duration)
	if err != nil {
		return fmt.Errorf("insert song %s: %w", row.SongID, err)
	}
	return nil
}

func (t *Tx) InsertArtist(ctx context.Context, row storage.ArtistRow) error {
	_, err := t.tx.ExecContext(ctx, t.stmts.InsertArtist,
		row.ArtistID, row.Name, NullString(row.Location), NullFloat64(row.Latitude), NullFloat64(row.Longitude))
	if err != nil {
		return fmt.Errorf("insert artist %s: %w", row.ArtistID, err)
	}
	return nil
}

func (t *Tx) UpsertTime(ctx context.Context, row storage.TimeRow) error {
	_, err := t.tx.ExecContext(ctx, t.stmts.UpsertTime,
		row.StartTime, row.Hour, row.Day, row.Week, row.Month, row.Year, row.Weekday)
	if err != nil {
		return fmt.Errorf("upsert time %s: %w", row.StartTime, err)
	}
	return nil
}

func (t *Tx) UpsertUser(ctx context.Context, row storage.UserRow) error {
	_, err := t.tx.ExecContext(ctx, t.stmts.UpsertUser,
		row.UserID, NullString(row.FirstName), NullString(row.LastName), NullString(row.Gender), row.Level)
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", row.UserID, err)
	}
	return nil
}

func (t *Tx) InsertSongplay(ctx context.Context, row storage.SongplayRow) error {
	_, err := t.tx.ExecContext(ctx, t.stmts.InsertSongplay,
		row.StartTime, row.UserID, row.Level,
		NullString(row.SongID), NullString(row.ArtistID),
		row.SessionID, NullString(row.Location), NullString(row.UserAgent))
	if err != nil {
		return fmt.Errorf("insert songplay: %w", err)
	}
	return nil
}

func (t *Tx) LookupSong(ctx context.Context, q storage.SongLookup) (storage.SongMatch, bool, error) {
	var m storage.SongMatch
	err := t.tx.QueryRowContext(ctx, t.stmts.LookupSong, q.Title, q.ArtistName, q.Duration, q.Tolerance).
		Scan(&m.SongID, &m.ArtistID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SongMatch{}, false, nil
	}
	if err != nil {
		return storage.SongMatch{}, false, fmt.Errorf("lookup song: %w", err)
	}
	return m, true, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// NullString converts an optional string to a driver value. Valuers are
// resolved by database/sql before any driver-specific argument checks.
func NullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// NullFloat64 converts an optional float to a driver value.
func NullFloat64(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
