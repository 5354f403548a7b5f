package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"sparkify/internal/storage"
)

// fakeRepo records every transaction it hands out.
type fakeRepo struct {
	mu       sync.Mutex
	txs      []*fakeTx
	catalog  []catalogSong
	failOp   string // operation name that returns errBoom
	closed   int
	ensured  int
	beginErr error
}

type catalogSong struct {
	songID, title, artistID, artist string
	duration                        float64
}

var errBoom = errors.New("boom")

func (r *fakeRepo) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *fakeRepo) EnsureTables(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensured++
	return nil
}

func (r *fakeRepo) Begin(context.Context) (storage.Tx, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beginErr != nil {
		return nil, r.beginErr
	}
	tx := &fakeTx{repo: r}
	r.txs = append(r.txs, tx)
	return tx, nil
}

// ops flattens the operations of all committed transactions.
func (r *fakeRepo) committedOps() []op {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []op
	for _, tx := range r.txs {
		if tx.committed {
			out = append(out, tx.ops...)
		}
	}
	return out
}

type op struct {
	name string
	row  any
}

type fakeTx struct {
	repo       *fakeRepo
	ops        []op
	committed  bool
	rolledBack bool
}

func (t *fakeTx) record(name string, row any) error {
	if t.repo.failOp == name {
		return fmt.Errorf("%s: %w", name, errBoom)
	}
	t.ops = append(t.ops, op{name, row})
	return nil
}

func (t *fakeTx) InsertSong(_ context.Context, row storage.SongRow) error {
	return t.record("InsertSong", row)
}

func (t *fakeTx) InsertArtist(_ context.Context, row storage.ArtistRow) error {
	return t.record("InsertArtist", row)
}

func (t *fakeTx) UpsertTime(_ context.Context, row storage.TimeRow) error {
	return t.record("UpsertTime", row)
}

func (t *fakeTx) UpsertUser(_ context.Context, row storage.UserRow) error {
	return t.record("UpsertUser", row)
}

func (t *fakeTx) InsertSongplay(_ context.Context, row storage.SongplayRow) error {
	return t.record("InsertSongplay", row)
}

func (t *fakeTx) LookupSong(_ context.Context, q storage.SongLookup) (storage.SongMatch, bool, error) {
	if err := t.record("LookupSong", q); err != nil {
		return storage.SongMatch{}, false, err
	}
	var hits []catalogSong
	for _, s := range t.repo.catalog {
		if s.title == q.Title && s.artist == q.ArtistName && math.Abs(s.duration-q.Duration) <= q.Tolerance {
			hits = append(hits, s)
		}
	}
	if len(hits) == 0 {
		return storage.SongMatch{}, false, nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].songID < hits[j].songID })
	return storage.SongMatch{SongID: hits[0].songID, ArtistID: hits[0].artistID}, true, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.repo.failOp == "Commit" {
		return errBoom
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func opsNamed(ops []op, name string) []op {
	var out []op
	for _, o := range ops {
		if o.name == name {
			out = append(out, o)
		}
	}
	return out
}
