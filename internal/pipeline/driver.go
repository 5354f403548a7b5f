package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sparkify/internal/discover"
	"sparkify/internal/metrics"
	"sparkify/internal/storage"
)

// BatchReport summarizes one pass over an input root.
type BatchReport struct {
	Pass     string
	Root     string
	Files    int
	Stats    FileStats
	Duration time.Duration
}

// Driver runs a FileFunc over every file of a root, one transaction per
// file. The first failing file rolls back its own transaction and ends the
// pass; files committed before it stay committed.
type Driver struct {
	Repo   storage.Repository
	Walker discover.Walker
	Log    zerolog.Logger
	Now    func() time.Time
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Run processes the files under root in walker order. An empty or missing
// root is not an error.
func (d *Driver) Run(ctx context.Context, root, pass string, fn FileFunc) (rep BatchReport, err error) {
	start := d.now()
	rep = BatchReport{Pass: pass, Root: root}
	defer func() {
		rep.Duration = d.now().Sub(start)
		metrics.RecordStep(pass, err, rep.Duration)
	}()

	files, err := d.Walker.Files(ctx, root)
	if err != nil {
		return rep, fmt.Errorf("%s: list files: %w", pass, err)
	}
	d.Log.Info().Str("pass", pass).Int("count", len(files)).Str("dir", root).Msg("files found")

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		fileStart := d.now()
		st, err := d.runFile(ctx, path, fn)
		metrics.RecordFile(pass, err, d.now().Sub(fileStart))
		if err != nil {
			d.Log.Error().Err(err).Str("pass", pass).Str("path", path).Msg("file failed")
			return rep, fmt.Errorf("%s: %s: %w", pass, path, err)
		}

		rep.Files++
		rep.Stats.add(st)
		recordStats(st)
		d.Log.Info().
			Str("pass", pass).
			Int("index", i+1).
			Int("total", len(files)).
			Str("path", path).
			Msg("file processed")
	}
	return rep, nil
}

func (d *Driver) runFile(ctx context.Context, path string, fn FileFunc) (FileStats, error) {
	tx, err := d.Repo.Begin(ctx)
	if err != nil {
		return FileStats{}, err
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	st, err := fn(ctx, tx, path)
	if err != nil {
		return FileStats{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return FileStats{}, err
	}
	metrics.IncBatches()
	return st, nil
}

func recordStats(st FileStats) {
	metrics.AddRecords("song", st.Songs)
	metrics.AddRecords("artist", st.Artists)
	metrics.AddRecords("time", st.TimeRows)
	metrics.AddRecords("user", st.Users)
	metrics.AddRecords("user_skipped", st.UsersSkipped)
	metrics.AddRecords("songplay", st.Songplays)
	metrics.AddRecords("songplay_matched", st.Matched)
	metrics.AddRecords("songplay_unmatched", st.Unmatched)
}
