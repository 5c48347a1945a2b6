package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/feedocr/internal/pipeline"
)

// discoverSequences resolves each argument into screenshot sequences. A
// directory holding numbered screenshots is one sequence; otherwise each
// of its direct subdirectories that holds them is one.
func discoverSequences(args []string, includePatterns, excludePatterns []string) ([]pipeline.Sequence, error) {
	var seqs []pipeline.Sequence

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", arg)
		}

		seq, err := pipeline.DiscoverSequence(arg)
		switch {
		case err == nil:
			if shouldIncludeDir(arg, includePatterns, excludePatterns) {
				seqs = append(seqs, seq)
			}
			continue
		case !errors.Is(err, pipeline.ErrNoImages):
			return nil, err
		}

		found, err := discoverInRoot(arg, includePatterns, excludePatterns)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, found...)
	}

	return seqs, nil
}

// discoverInRoot lists the sequence directories directly below root, by name.
func discoverInRoot(root string, includePatterns, excludePatterns []string) ([]pipeline.Sequence, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var seqs []pipeline.Sequence
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if !shouldIncludeDir(dir, includePatterns, excludePatterns) {
			continue
		}
		seq, err := pipeline.DiscoverSequence(dir)
		if errors.Is(err, pipeline.ErrNoImages) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	slices.SortFunc(seqs, func(a, b pipeline.Sequence) int {
		switch {
		case a.Dir < b.Dir:
			return -1
		case a.Dir > b.Dir:
			return 1
		}
		return 0
	})
	return seqs, nil
}

// shouldIncludeDir determines if a sequence directory should be included based on include/exclude patterns.
func shouldIncludeDir(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks if the base name of path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(filepath.Clean(path))
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
