package transformer

import (
	"testing"

	"sparkify/internal/records"
	"sparkify/internal/storage"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	decomposed := "Beyonce\u0301"
	composed := "Beyonc\u00e9"

	tests := []struct {
		in, want string
	}{
		{in: "Gene Krupa", want: "Gene Krupa"},
		{in: decomposed, want: composed},
		{in: composed, want: composed},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Fatalf("NormalizeText(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCatalogRows(t *testing.T) {
	t.Parallel()

	rec := records.CatalogRecord{
		NumSongs:   1,
		SongID:     "SOSZMXF12A8C133DF5",
		Title:      "In The Dark",
		ArtistID:   "ARXR32B1187FB57099",
		Year:       0,
		Duration:   152.92036,
		ArtistName: "Gene Krupa",
	}

	song := SongRow(rec, NormalizeText)
	want := storage.SongRow{SongID: "SOSZMXF12A8C133DF5", Title: "In The Dark", ArtistID: "ARXR32B1187FB57099", Year: 0, Duration: 152.92036}
	if song != want {
		t.Fatalf("song=%+v, want %+v", song, want)
	}

	artist := ArtistRow(rec, Identity)
	if artist.ArtistID != rec.ArtistID || artist.Name != "Gene Krupa" {
		t.Fatalf("artist=%+v", artist)
	}
	if artist.Location != nil || artist.Latitude != nil || artist.Longitude != nil {
		t.Fatalf("missing optional fields must stay null: %+v", artist)
	}

	rec.ArtistLatitude = records.NewNullFloat64(35.14968)
	if a := ArtistRow(rec, Identity); a.Latitude == nil || *a.Latitude != 35.14968 {
		t.Fatalf("latitude=%v", a.Latitude)
	}
}

func TestSongplayRow(t *testing.T) {
	t.Parallel()

	e := records.ActivityEvent{
		TS:        1541106106796,
		UserID:    "8",
		Level:     "free",
		Page:      "NextSong",
		SessionID: 139,
		Location:  records.NewNullString("Phoenix-Mesa-Scottsdale, AZ"),
	}

	unmatched := SongplayRow(e, storage.SongMatch{})
	if unmatched.SongID != nil || unmatched.ArtistID != nil {
		t.Fatalf("unmatched play must have null ids: %+v", unmatched)
	}
	if unmatched.UserAgent != nil || unmatched.Location == nil {
		t.Fatalf("location/user_agent=%v/%v", unmatched.Location, unmatched.UserAgent)
	}
	if unmatched.StartTime.UnixMilli() != e.TS || unmatched.SessionID != 139 {
		t.Fatalf("row=%+v", unmatched)
	}

	matched := SongplayRow(e, storage.SongMatch{SongID: "SOA", ArtistID: "AR1"})
	if matched.SongID == nil || *matched.SongID != "SOA" || *matched.ArtistID != "AR1" {
		t.Fatalf("matched ids=%v/%v", matched.SongID, matched.ArtistID)
	}
}
