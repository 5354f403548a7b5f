package pipeline

import (
	"context"

	"sparkify/internal/records"
	"sparkify/internal/storage"
	"sparkify/internal/transformer"
)

// Resolver turns NextSong events into songplay facts.
//
// An event matches a catalog song when title, artist name and duration all
// agree; duration may differ by at most Tolerance seconds. Events missing
// any of the three never match. Unmatched plays are still written, with
// null song_id and artist_id.
type Resolver struct {
	Tolerance float64
	Normalize transformer.Normalizer
}

// Lookup resolves one event. ok is false when nothing matches.
func (r Resolver) Lookup(ctx context.Context, tx storage.Tx, e records.ActivityEvent) (storage.SongMatch, bool, error) {
	if !e.Song.Valid || !e.Artist.Valid || !e.Length.Valid {
		return storage.SongMatch{}, false, nil
	}
	n := r.Normalize
	if n == nil {
		n = transformer.Identity
	}
	return tx.LookupSong(ctx, storage.SongLookup{
		Title:      n(e.Song.String),
		ArtistName: n(e.Artist.String),
		Duration:   e.Length.Float64,
		Tolerance:  r.Tolerance,
	})
}

// Play writes one songplay per event, in order.
func (r Resolver) Play(ctx context.Context, tx storage.Tx, plays []records.ActivityEvent) (matched, unmatched int, err error) {
	for _, e := range plays {
		m, ok, err := r.Lookup(ctx, tx, e)
		if err != nil {
			return matched, unmatched, err
		}
		if ok {
			matched++
		} else {
			m = storage.SongMatch{}
			unmatched++
		}
		if err := tx.InsertSongplay(ctx, transformer.SongplayRow(e, m)); err != nil {
			return matched, unmatched, err
		}
	}
	return matched, unmatched, nil
}
