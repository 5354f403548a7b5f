// Package records defines the typed input records read from the song catalog
// and the user-activity logs.
package records

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// PageNextSong is the page value of a song play event.
const PageNextSong = "NextSong"

// CatalogRecord is one line of a song catalog file: a single song and the
// artist performing it.
type CatalogRecord struct {
	NumSongs        int64       `json:"num_songs"`
	SongID          string      `json:"song_id"`
	Title           string      `json:"title"`
	ArtistID        string      `json:"artist_id"`
	Year            int64       `json:"year"`
	Duration        float64     `json:"duration"`
	ArtistName      string      `json:"artist_name"`
	ArtistLocation  NullString  `json:"artist_location"`
	ArtistLatitude  NullFloat64 `json:"artist_latitude"`
	ArtistLongitude NullFloat64 `json:"artist_longitude"`
}

// ActivityEvent is one line of an activity log file. Only NextSong events
// carry song, artist and length.
type ActivityEvent struct {
	TS        int64       `json:"ts"`
	UserID    FlexString  `json:"userId"`
	FirstName NullString  `json:"firstName"`
	LastName  NullString  `json:"lastName"`
	Gender    NullString  `json:"gender"`
	Level     string      `json:"level"`
	Page      string      `json:"page"`
	Song      NullString  `json:"song"`
	Artist    NullString  `json:"artist"`
	Length    NullFloat64 `json:"length"`
	SessionID int64       `json:"sessionId"`
	Location  NullString  `json:"location"`
	UserAgent NullString  `json:"userAgent"`
}

// IsNextSong reports whether the event is a song play.
func (e ActivityEvent) IsNextSong() bool { return e.Page == PageNextSong }

var jsonNull = []byte("null")

// NullString is a string that may be JSON null.
type NullString struct {
	String string
	Valid  bool
}

// NewNullString returns a valid NullString.
func NewNullString(s string) NullString { return NullString{String: s, Valid: true} }

func (n *NullString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*n = NullString{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*n = NullString{String: s, Valid: true}
	return nil
}

// Ptr returns nil when n is null. Drivers bind a nil *string as SQL NULL.
func (n NullString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

// NullFloat64 is a float64 that may be JSON null.
type NullFloat64 struct {
	Float64 float64
	Valid   bool
}

// NewNullFloat64 returns a valid NullFloat64.
func NewNullFloat64(f float64) NullFloat64 { return NullFloat64{Float64: f, Valid: true} }

func (n *NullFloat64) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*n = NullFloat64{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = NullFloat64{Float64: f, Valid: true}
	return nil
}

// Ptr returns nil when n is null.
func (n NullFloat64) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

// FlexString accepts a JSON string or number and keeps it as a string.
// The logs encode userId as "39", but also as 39 in some exports, and as ""
// for logged-out sessions. null decodes to "".
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("records: userId must be a string or number: %w", err)
	}
	// 39.0 style numbers collapse to their integer form.
	if fl, err := strconv.ParseFloat(n.String(), 64); err == nil && fl == float64(int64(fl)) {
		*f = FlexString(strconv.FormatInt(int64(fl), 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }
