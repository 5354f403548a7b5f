package pipeline

import (
	"context"
	"testing"

	"sparkify/internal/records"
	"sparkify/internal/storage"
	"sparkify/internal/transformer"
)

func play(song, artist string, length float64) records.ActivityEvent {
	return records.ActivityEvent{
		TS:        1541106106796,
		UserID:    "8",
		Level:     "free",
		Page:      records.PageNextSong,
		Song:      records.NewNullString(song),
		Artist:    records.NewNullString(artist),
		Length:    records.NewNullFloat64(length),
		SessionID: 139,
	}
}

func TestResolver_Lookup(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{catalog: []catalogSong{
		{songID: "SOC", title: "In The Dark", artistID: "AR2", artist: "Gene Krupa", duration: 152.92036},
		{songID: "SOB", title: "Twin", artistID: "AR1", artist: "Pair", duration: 200},
		{songID: "SOA", title: "Twin", artistID: "AR1", artist: "Pair", duration: 200},
		{songID: "SOE", title: "Beyonc\u00e9 Song", artistID: "AR3", artist: "Beyonc\u00e9", duration: 100},
	}}

	noLength := play("In The Dark", "Gene Krupa", 0)
	noLength.Length = records.NullFloat64{}
	noSong := play("", "Gene Krupa", 152.92036)
	noSong.Song = records.NullString{}

	tests := []struct {
		name      string
		r         Resolver
		e         records.ActivityEvent
		want      storage.SongMatch
		wantOK    bool
		wantQuery bool
	}{
		{name: "exact", r: Resolver{}, e: play("In The Dark", "Gene Krupa", 152.92036), want: storage.SongMatch{SongID: "SOC", ArtistID: "AR2"}, wantOK: true, wantQuery: true},
		{name: "tolerance", r: Resolver{Tolerance: 1e-3}, e: play("In The Dark", "Gene Krupa", 152.9207), want: storage.SongMatch{SongID: "SOC", ArtistID: "AR2"}, wantOK: true, wantQuery: true},
		{name: "outside_tolerance", r: Resolver{Tolerance: 1e-6}, e: play("In The Dark", "Gene Krupa", 152.93), wantQuery: true},
		{name: "artist_mismatch", r: Resolver{}, e: play("In The Dark", "Buddy Rich", 152.92036), wantQuery: true},
		{name: "tie_break_lowest_id", r: Resolver{}, e: play("Twin", "Pair", 200), want: storage.SongMatch{SongID: "SOA", ArtistID: "AR1"}, wantOK: true, wantQuery: true},
		{name: "null_length_skips_lookup", r: Resolver{}, e: noLength},
		{name: "null_song_skips_lookup", r: Resolver{}, e: noSong},
		{name: "nfc_on", r: Resolver{Normalize: transformer.NormalizeText}, e: play("Beyonce\u0301 Song", "Beyonce\u0301", 100), want: storage.SongMatch{SongID: "SOE", ArtistID: "AR3"}, wantOK: true, wantQuery: true},
		{name: "nfc_off", r: Resolver{}, e: play("Beyonce\u0301 Song", "Beyonce\u0301", 100), wantQuery: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, _ := repo.Begin(context.Background())
			got, ok, err := tt.r.Lookup(context.Background(), tx, tt.e)
			if err != nil {
				t.Fatalf("Lookup err=%v", err)
			}
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("got=%+v ok=%v, want %+v ok=%v", got, ok, tt.want, tt.wantOK)
			}
			if queried := len(tx.(*fakeTx).ops) > 0; queried != tt.wantQuery {
				t.Fatalf("queried=%v, want %v", queried, tt.wantQuery)
			}
		})
	}
}

func TestResolver_PlayWritesEveryEventInOrder(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{catalog: []catalogSong{
		{songID: "SOC", title: "In The Dark", artistID: "AR2", artist: "Gene Krupa", duration: 152.92036},
	}}
	tx, _ := repo.Begin(context.Background())

	events := []records.ActivityEvent{
		play("In The Dark", "Gene Krupa", 152.92036),
		play("Unknown", "Nobody", 10),
	}
	events[1].SessionID = 140

	matched, unmatched, err := Resolver{Tolerance: 1e-6}.Play(context.Background(), tx, events)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if matched != 1 || unmatched != 1 {
		t.Fatalf("matched=%d unmatched=%d, want 1 1", matched, unmatched)
	}

	plays := opsNamed(tx.(*fakeTx).ops, "InsertSongplay")
	if len(plays) != 2 {
		t.Fatalf("songplays=%d, want 2", len(plays))
	}
	first := plays[0].row.(storage.SongplayRow)
	second := plays[1].row.(storage.SongplayRow)
	if first.SongID == nil || *first.SongID != "SOC" || *first.ArtistID != "AR2" {
		t.Fatalf("first play ids=%v/%v", first.SongID, first.ArtistID)
	}
	if second.SongID != nil || second.ArtistID != nil || second.SessionID != 140 {
		t.Fatalf("second play=%+v, want null ids session 140", second)
	}
}

func TestResolver_Deterministic(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{catalog: []catalogSong{
		{songID: "SOZ", title: "Same", artistID: "AR9", artist: "A", duration: 1},
		{songID: "SOM", title: "Same", artistID: "AR8", artist: "A", duration: 1},
	}}
	var first storage.SongMatch
	for i := 0; i < 10; i++ {
		tx, _ := repo.Begin(context.Background())
		m, ok, err := Resolver{}.Lookup(context.Background(), tx, play("Same", "A", 1))
		if err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
		if i == 0 {
			first = m
		}
		if m != first || m.SongID != "SOM" {
			t.Fatalf("run %d got=%+v, want stable SOM", i, m)
		}
	}
}
