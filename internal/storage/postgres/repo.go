package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sparkify/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

It provides:
  - one pgx transaction per input file
  - ON CONFLICT based idempotency for the dimensions
  - the three-key song lookup with an absolute duration tolerance
*/
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Postgres-backed Repo and verifies connectivity.
func NewRepository(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}
	// The pipeline is sequential; one connection is all it ever uses.
	pcfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTables creates the star schema if it does not exist. It is idempotent.
func (r *Repo) EnsureTables(ctx context.Context) error {
	for _, q := range createTables {
		if _, err := r.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

// Begin starts the unit of work for one file.
func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) InsertSong(ctx context.Context, row storage.SongRow) error {
	if _, err := t.tx.Exec(ctx, insertSong, row.SongID, row.Title, row.ArtistID, row.Year, row.Duration); err != nil {
		return fmt.Errorf("insert song %s: %w", row.SongID, err)
	}
	return nil
}

func (t *Tx) InsertArtist(ctx context.Context, row storage.ArtistRow) error {
	if _, err := t.tx.Exec(ctx, insertArtist, row.ArtistID, row.Name, row.Location, row.Latitude, row.Longitude); err != nil {
		return fmt.Errorf("insert artist %s: %w", row.ArtistID, err)
	}
	return nil
}

func (t *Tx) UpsertTime(ctx context.Context, row storage.TimeRow) error {
	_, err := t.tx.Exec(ctx, upsertTime,
		row.StartTime, row.Hour, row.Day, row.Week, row.Month, row.Year, row.Weekday)
	if err != nil {
		return fmt.Errorf("upsert time %s: %w", row.StartTime, err)
	}
	return nil
}

func (t *Tx) UpsertUser(ctx context.Context, row storage.UserRow) error {
	_, err := t.tx.Exec(ctx, upsertUser, row.UserID, row.FirstName, row.LastName, row.Gender, row.Level)
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", row.UserID, err)
	}
	return nil
}

func (t *Tx) InsertSongplay(ctx context.Context, row storage.SongplayRow) error {
	_, err := t.tx.Exec(ctx, insertSongplay,
		row.StartTime, row.UserID, row.Level, row.SongID, row.ArtistID,
		row.SessionID, row.Location, row.UserAgent)
	if err != nil {
		return fmt.Errorf("insert songplay: %w", err)
	}
	return nil
}

func (t *Tx) LookupSong(ctx context.Context, q storage.SongLookup) (storage.SongMatch, bool, error) {
	var m storage.SongMatch
	err := t.tx.QueryRow(ctx, lookupSong, q.Title, q.ArtistName, q.Duration, q.Tolerance).Scan(&m.SongID, &m.ArtistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.SongMatch{}, false, nil
	}
	if err != nil {
		return storage.SongMatch{}, false, fmt.Errorf("lookup song: %w", err)
	}
	return m, true, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback is a no-op once the transaction is committed.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
