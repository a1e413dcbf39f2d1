package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/rapidocr-go/internal/imageio"
)

// DiscoverOptions controls which files Discover returns.
type DiscoverOptions struct {
	Recursive bool
	Include   []string // base-name globs; empty means every supported image
	Exclude   []string // base-name globs checked before Include
}

// Discover expands args into image file paths. Files named directly are
// kept when they pass the patterns; directories are walked (one level
// unless Recursive) and their entries sorted by path.
func Discover(args []string, opts DiscoverOptions) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if shouldInclude(arg, opts) {
				files = append(files, arg)
			}
			continue
		}
		found, err := discoverInDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func discoverInDirectory(dir string, opts DiscoverOptions) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldInclude(path, opts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// shouldInclude applies exclude patterns first, then include patterns, and
// falls back to the supported-extension check when no include is given.
func shouldInclude(path string, opts DiscoverOptions) bool {
	if matchesAnyPattern(path, opts.Exclude) {
		return false
	}
	if len(opts.Include) == 0 {
		return imageio.IsSupported(path)
	}
	return matchesAnyPattern(path, opts.Include)
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
