// Package artifact names and describes the files a backup run produces.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// TimestampLayout is the run-start timestamp embedded in default names.
	TimestampLayout = "2006-01-02_15-04-05"

	RawExtension = "sql"
)

// Artifact is a finished file on local disk.
type Artifact struct {
	Path string
	Name string
	Size int64
}

// Stat builds an Artifact for an existing file.
func Stat(path string) (Artifact, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, Name: filepath.Base(path), Size: fi.Size()}, nil
}

// DefaultName formats {database}_{YYYY-MM-DD_HH-MM-SS}.{extension} for the
// given run start time.
func DefaultName(database, extension string, started time.Time) string {
	return fmt.Sprintf("%s_%s.%s", database, started.Format(TimestampLayout), strings.TrimPrefix(extension, "."))
}

// RawName derives the intermediate dump name from an archive name by
// substituting the archive extension with the raw one. The result never
// equals archiveName.
func RawName(archiveName, archiveExtension string) string {
	suffix := "." + strings.TrimPrefix(archiveExtension, ".")
	var raw string
	if strings.HasSuffix(archiveName, suffix) {
		raw = strings.TrimSuffix(archiveName, suffix) + "." + RawExtension
	} else {
		raw = archiveName + "." + RawExtension
	}
	if raw == archiveName {
		raw += "." + RawExtension
	}
	return raw
}

// ParseTime extracts the run timestamp from a default-formatted name for
// database. ok is false for names that were not produced by DefaultName.
func ParseTime(database, name string) (time.Time, bool) {
	prefix := database + "_"
	if !strings.HasPrefix(name, prefix) {
		return time.Time{}, false
	}
	rest := name[len(prefix):]
	if len(rest) < len(TimestampLayout)+2 || rest[len(TimestampLayout)] != '.' {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, rest[:len(TimestampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
