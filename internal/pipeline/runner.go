package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sparkify/internal/config"
	"sparkify/internal/discover"
	"sparkify/internal/metrics"
	"sparkify/internal/storage"
	"sparkify/internal/transformer"
)

// Pass names, used in logs and metric labels.
const (
	PassCatalog = "catalog"
	PassLogs    = "logs"
)

// RunReport is the outcome of one Run.
type RunReport struct {
	RunID    string
	Catalog  BatchReport
	Logs     BatchReport
	Duration time.Duration
}

// Runner wires configuration to the store and the two passes.
type Runner struct {
	// NewRepository opens the store. Defaults to storage.New.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	// Walker lists input files. Defaults to discover.GlobWalker.
	Walker discover.Walker
	Log    zerolog.Logger
	Now    func() time.Time
	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

// NewDefaultRunner returns a Runner using the registered storage backends
// and the recursive *.json walker.
func NewDefaultRunner(log zerolog.Logger) *Runner {
	return &Runner{
		NewRepository: storage.New,
		Walker:        discover.GlobWalker{},
		Log:           log,
		Now:           time.Now,
		NewRunID:      func() string { return uuid.NewString() },
	}
}

// Run loads the whole catalog, then the whole activity log. The repository
// is opened once and closed before Run returns, also on failure.
func (r *Runner) Run(ctx context.Context, cfg config.Config) (RunReport, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	rep := RunReport{RunID: r.runID()}
	log := r.Log.With().Str("run_id", rep.RunID).Logger()

	newRepo := r.NewRepository
	if newRepo == nil {
		newRepo = storage.New
	}
	repo, err := newRepo(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		return rep, fmt.Errorf("open %s storage: %w", cfg.Storage.Kind, err)
	}
	defer repo.Close()

	if cfg.AutoCreateTables {
		t0 := now()
		err := repo.EnsureTables(ctx)
		metrics.RecordStep("ensure_tables", err, now().Sub(t0))
		if err != nil {
			return rep, err
		}
		log.Debug().Str("kind", cfg.Storage.Kind).Msg("tables ensured")
	}

	walker := r.Walker
	if walker == nil {
		walker = discover.GlobWalker{}
	}
	d := &Driver{Repo: repo, Walker: walker, Log: log, Now: now}

	normalize := transformer.Identity
	if cfg.Match.NormalizeUnicode {
		normalize = transformer.NormalizeText
	}
	p := Processor{
		Resolver:        Resolver{Tolerance: cfg.Match.DurationTolerance, Normalize: normalize},
		Normalize:       normalize,
		SkipBlankUserID: cfg.Users.SkipBlankUserID,
	}

	rep.Catalog, err = d.Run(ctx, cfg.Paths.SongData, PassCatalog, p.SongFile)
	if err != nil {
		return rep, err
	}
	rep.Logs, err = d.Run(ctx, cfg.Paths.LogData, PassLogs, p.LogFile)
	if err != nil {
		return rep, err
	}

	rep.Duration = now().Sub(start)
	log.Info().
		Int("song_files", rep.Catalog.Files).
		Int("log_files", rep.Logs.Files).
		Int("songplays", rep.Logs.Stats.Songplays).
		Int("matched", rep.Logs.Stats.Matched).
		Int("unmatched", rep.Logs.Stats.Unmatched).
		Dur("took", rep.Duration).
		Msg("run complete")
	return rep, nil
}

func (r *Runner) runID() string {
	if r.NewRunID != nil {
		return r.NewRunID()
	}
	return uuid.NewString()
}
