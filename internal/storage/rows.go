// Row types live in storage so every backend can consume them without
// importing the pipeline.
package storage

import "time"

// SongRow is one row of the songs dimension.
type SongRow struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int64
	Duration float64
}

// ArtistRow is one row of the artists dimension. Location, Latitude and
// Longitude are nil when unknown.
type ArtistRow struct {
	ArtistID  string
	Name      string
	Location  *string
	Latitude  *float64
	Longitude *float64
}

// TimeRow is one row of the time dimension. Weekday is 0=Monday..6=Sunday,
// Week is the ISO-8601 week number.
type TimeRow struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int
}

// UserRow is one row of the users dimension.
type UserRow struct {
	UserID    string
	FirstName *string
	LastName  *string
	Gender    *string
	Level     string
}

// SongplayRow is one songplay fact. SongID and ArtistID are nil when the
// play did not match the catalog.
type SongplayRow struct {
	StartTime time.Time
	UserID    string
	Level     string
	SongID    *string
	ArtistID  *string
	SessionID int64
	Location  *string
	UserAgent *string
}

// SongLookup is the three-key catalog match for a play event. Durations
// match when |song.duration - Duration| <= Tolerance.
type SongLookup struct {
	Title      string
	ArtistName string
	Duration   float64
	Tolerance  float64
}

// SongMatch is the result of a SongLookup.
type SongMatch struct {
	SongID   string
	ArtistID string
}
