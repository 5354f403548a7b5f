package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the connection-scoped store handle shared by one run.
//
// The pipeline opens exactly one Repository per run, uses it sequentially,
// and releases it with Close when the run ends (successfully or not).
type Repository interface {
	// Close releases backend resources. Call once.
	Close()

	// EnsureTables creates the star schema tables if they do not exist.
	// Only called when the run is configured to bootstrap its schema.
	EnsureTables(ctx context.Context) error

	// Begin opens the unit of work for one input file.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one file's unit of work. Every statement is parameterized.
//
// Conflict semantics each backend must implement:
//   - InsertSong / InsertArtist: insert, ignore duplicate keys.
//   - UpsertTime: insert, ignore duplicate start_time (derived columns are
//     deterministic, so ignoring equals overwriting).
//   - UpsertUser: insert or overwrite all columns (latest wins).
//   - InsertSongplay: append.
type Tx interface {
	InsertSong(ctx context.Context, row SongRow) error
	InsertArtist(ctx context.Context, row ArtistRow) error
	UpsertTime(ctx context.Context, row TimeRow) error
	UpsertUser(ctx context.Context, row UserRow) error
	InsertSongplay(ctx context.Context, row SongplayRow) error

	// LookupSong returns the first (lowest song_id) catalog song matching q.
	// ok is false when nothing matches; that is not an error.
	LookupSong(ctx context.Context, q SongLookup) (m SongMatch, ok bool, err error)

	Commit(ctx context.Context) error

	// Rollback aborts the unit of work. It is a no-op after Commit so callers
	// can always defer it.
	Rollback(ctx context.Context) error
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New opens a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Registered reports whether kind has a backend.
func Registered(kind string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[kind]
	return ok
}
