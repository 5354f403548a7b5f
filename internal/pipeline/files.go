package pipeline

import (
	"context"

	"sparkify/internal/parser/json"
	"sparkify/internal/records"
	"sparkify/internal/storage"
	"sparkify/internal/transformer"
)

// FileStats counts what one file (or, summed, one pass) wrote.
type FileStats struct {
	Records      int
	Songs        int
	Artists      int
	TimeRows     int
	Users        int
	UsersSkipped int
	Songplays    int
	Matched      int
	Unmatched    int
}

func (s *FileStats) add(o FileStats) {
	s.Records += o.Records
	s.Songs += o.Songs
	s.Artists += o.Artists
	s.TimeRows += o.TimeRows
	s.Users += o.Users
	s.UsersSkipped += o.UsersSkipped
	s.Songplays += o.Songplays
	s.Matched += o.Matched
	s.Unmatched += o.Unmatched
}

// FileFunc processes one file inside its transaction.
type FileFunc func(ctx context.Context, tx storage.Tx, path string) (FileStats, error)

// Processor holds the per-file logic of both passes.
type Processor struct {
	Resolver        Resolver
	Normalize       transformer.Normalizer
	SkipBlankUserID bool
}

// SongFile loads one catalog file.
func (p Processor) SongFile(ctx context.Context, tx storage.Tx, path string) (FileStats, error) {
	recs, err := json.ReadFile[records.CatalogRecord](ctx, path)
	if err != nil {
		return FileStats{}, err
	}
	return LoadCatalog(ctx, tx, recs, p.Normalize)
}

// LogFile loads one activity log file: time rows for the song plays, a user
// upsert for every event, then the songplay facts.
func (p Processor) LogFile(ctx context.Context, tx storage.Tx, path string) (FileStats, error) {
	events, err := json.ReadFile[records.ActivityEvent](ctx, path)
	if err != nil {
		return FileStats{}, err
	}
	st := FileStats{Records: len(events)}

	plays := transformer.NextSongEvents(events)
	for _, row := range transformer.TimeRows(plays) {
		if err := tx.UpsertTime(ctx, row); err != nil {
			return FileStats{}, err
		}
		st.TimeRows++
	}

	users, skipped := transformer.UserRows(events, p.SkipBlankUserID)
	st.UsersSkipped = skipped
	for _, row := range users {
		if err := tx.UpsertUser(ctx, row); err != nil {
			return FileStats{}, err
		}
		st.Users++
	}

	matched, unmatched, err := p.Resolver.Play(ctx, tx, plays)
	if err != nil {
		return FileStats{}, err
	}
	st.Matched, st.Unmatched = matched, unmatched
	st.Songplays = matched + unmatched
	return st, nil
}
