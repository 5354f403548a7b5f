// Package pipeline loads the song catalog and the activity logs into the
// star schema, one transaction per input file.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"sparkify/internal/records"
	"sparkify/internal/storage"
	"sparkify/internal/transformer"
)

var (
	// ErrNoSongRecord is returned for a catalog file without a record.
	ErrNoSongRecord = errors.New("catalog file has no song record")
	// ErrMultipleSongRecords is returned for a catalog file with more than one record.
	ErrMultipleSongRecords = errors.New("catalog file has more than one song record")
)

// LoadCatalog writes the song and then the artist of a catalog file's single
// record. Duplicate keys are ignored by the store.
func LoadCatalog(ctx context.Context, tx storage.Tx, recs []records.CatalogRecord, normalize transformer.Normalizer) (FileStats, error) {
	switch {
	case len(recs) == 0:
		return FileStats{}, ErrNoSongRecord
	case len(recs) > 1:
		return FileStats{}, fmt.Errorf("%w: got %d", ErrMultipleSongRecords, len(recs))
	}
	if normalize == nil {
		normalize = transformer.Identity
	}

	rec := recs[0]
	if err := tx.InsertSong(ctx, transformer.SongRow(rec, normalize)); err != nil {
		return FileStats{}, err
	}
	if err := tx.InsertArtist(ctx, transformer.ArtistRow(rec, normalize)); err != nil {
		return FileStats{}, err
	}
	return FileStats{Records: 1, Songs: 1, Artists: 1}, nil
}
