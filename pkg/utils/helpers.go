package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// DefaultWorkerLimit bounds how many input files are read concurrently when
// nothing else is configured.
const DefaultWorkerLimit = 4

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// GetWorkerLimit returns the worker limit from the TABGRAPH_WORKERS environment
// variable, falling back to DefaultWorkerLimit capped at GOMAXPROCS.
func GetWorkerLimit() int {
	if val := os.Getenv("TABGRAPH_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return min(DefaultWorkerLimit, runtime.GOMAXPROCS(0))
}

// SanitizeFilename reduces an untrusted file name to a safe base name made of
// ASCII letters, digits, dots, dashes and underscores. It returns fallback if
// nothing usable remains.
func SanitizeFilename(name, fallback string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return fallback
	}
	return name
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
