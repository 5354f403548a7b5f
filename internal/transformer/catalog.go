package transformer

import (
	"golang.org/x/text/unicode/norm"

	"sparkify/internal/records"
	"sparkify/internal/storage"
)

// NormalizeText returns s in Unicode NFC. Titles and artist names are
// compared byte-wise by the store, so both sides of the song lookup must
// use the same form.
func NormalizeText(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// Normalizer is applied to titles and artist names before they are stored or
// looked up. Identity disables normalization.
type Normalizer func(string) string

// Identity returns s unchanged.
func Identity(s string) string { return s }

// SongRow maps a catalog record to its song row.
func SongRow(r records.CatalogRecord, n Normalizer) storage.SongRow {
	return storage.SongRow{
		SongID:   r.SongID,
		Title:    n(r.Title),
		ArtistID: r.ArtistID,
		Year:     r.Year,
		Duration: r.Duration,
	}
}

// ArtistRow maps a catalog record to its artist row.
func ArtistRow(r records.CatalogRecord, n Normalizer) storage.ArtistRow {
	return storage.ArtistRow{
		ArtistID:  r.ArtistID,
		Name:      n(r.ArtistName),
		Location:  r.ArtistLocation.Ptr(),
		Latitude:  r.ArtistLatitude.Ptr(),
		Longitude: r.ArtistLongitude.Ptr(),
	}
}

// SongplayRow maps a NextSong event and its catalog match to a fact row.
// An empty match leaves song_id and artist_id null.
func SongplayRow(e records.ActivityEvent, m storage.SongMatch) storage.SongplayRow {
	row := storage.SongplayRow{
		StartTime: DecomposeTime(e.TS).StartTime,
		UserID:    e.UserID.String(),
		Level:     e.Level,
		SessionID: e.SessionID,
		Location:  e.Location.Ptr(),
		UserAgent: e.UserAgent.Ptr(),
	}
	if m.SongID != "" {
		songID, artistID := m.SongID, m.ArtistID
		row.SongID = &songID
		row.ArtistID = &artistID
	}
	return row
}
