package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// maxNameAttempts bounds the numeric suffixes tried before giving up.
const maxNameAttempts = 10000

// CreateUnique creates a new file in dir named filename, or filename with a
// numeric suffix before the extension (report.csv, report_1.csv, ...) if that
// name is taken. It returns the open file and its path.
func CreateUnique(dir, filename string) (*os.File, string, error) {
	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]

	for i := 0; i < maxNameAttempts; i++ {
		path := filepath.Join(dir, candidate(base, i)+ext)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free name for %q in %s", filename, dir)
}

// LinkGroup publishes each finished file in srcs under dir as base+suffix,
// all sharing the same disambiguation counter: base+suffix for every suffix
// if all are free, else base_1+suffix, base_2+suffix and so on. Names are
// claimed with hard links, which fail instead of replacing an existing file,
// so a published name never shows partial content. It returns the new paths
// in suffix order; srcs are left for the caller to remove.
func LinkGroup(dir, base string, srcs []string, suffixes ...string) ([]string, error) {
	if len(srcs) != len(suffixes) {
		return nil, fmt.Errorf("%d files for %d suffixes", len(srcs), len(suffixes))
	}
	for i := 0; i < maxNameAttempts; i++ {
		stem := candidate(base, i)
		paths, err := linkAll(dir, stem, srcs, suffixes)
		if err == nil {
			return paths, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free names for %q in %s", base, dir)
}

func linkAll(dir, stem string, srcs, suffixes []string) ([]string, error) {
	paths := make([]string, 0, len(suffixes))
	for i, suffix := range suffixes {
		path := filepath.Join(dir, stem+suffix)
		if err := os.Link(srcs[i], path); err != nil {
			for _, p := range paths {
				os.Remove(p)
			}
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func candidate(base string, i int) string {
	if i == 0 {
		return base
	}
	return base + "_" + strconv.Itoa(i)
}
