// Package discover enumerates the input files of a batch.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches JSON files at any depth below the root.
const DefaultPattern = "**/*.json"

// Walker lists the files of one input root.
type Walker interface {
	Files(ctx context.Context, root string) ([]string, error)
}

// GlobWalker walks root recursively and returns the absolute paths of the
// regular files matching Pattern, in lexical order.
//
// Edge cases:
//   - A missing root yields no files and no error.
//   - A root that is not a directory is an error.
type GlobWalker struct {
	// Pattern is a doublestar pattern relative to root. Empty means DefaultPattern.
	Pattern string
}

func (w GlobWalker) Files(ctx context.Context, root string) ([]string, error) {
	pattern := w.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("discover: invalid pattern %q", pattern)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	st, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("discover: %s is not a directory", abs)
	}

	var out []string
	err = doublestar.GlobWalk(os.DirFS(abs), pattern, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		out = append(out, filepath.Join(abs, filepath.FromSlash(p)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", abs, err)
	}

	sort.Strings(out)
	return out, nil
}

// StaticWalker returns a fixed file list per root. Used by tests and dry runs.
type StaticWalker map[string][]string

func (w StaticWalker) Files(_ context.Context, root string) ([]string, error) {
	return append([]string(nil), w[root]...), nil
}

var (
	_ Walker = GlobWalker{}
	_ Walker = StaticWalker(nil)
)
