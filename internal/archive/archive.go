// Package archive wraps a finished raw dump into a single-entry compressed
// container.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dev-tams/sqlbackup/internal/artifact"
	"github.com/dev-tams/sqlbackup/internal/backuperr"
)

type Format string

const (
	None Format = "none"
	Zip  Format = "zip"
	Gzip Format = "gzip"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", None:
		return None, nil
	case Zip:
		return Zip, nil
	case Gzip, "gz":
		return Gzip, nil
	default:
		return "", fmt.Errorf("unsupported archive format %q", s)
	}
}

// Extension is the file extension (without leading dot) of the container.
func (f Format) Extension() string {
	switch f {
	case Zip:
		return "zip"
	case Gzip:
		return "sql.gz"
	default:
		return artifact.RawExtension
	}
}

type entryWriter func(dst io.Writer, entryName string, src *os.File) error

func (f Format) writer() (entryWriter, error) {
	switch f {
	case Zip:
		return writeZip, nil
	case Gzip:
		return writeGzip, nil
	default:
		return nil, fmt.Errorf("format %q does not produce a container", f)
	}
}

// Package writes rawPath into a new container at archivePath, replacing any
// existing file there, with a single entry named after rawPath's base name.
// The raw dump is deleted only after the container is finalized; on failure
// it is left untouched and any partial container is removed.
func Package(rawPath, archivePath string, format Format) (artifact.Artifact, error) {
	write, err := format.writer()
	if err != nil {
		return artifact.Artifact{}, backuperr.New(backuperr.ErrArchive, "select format", err).WithPath(archivePath)
	}

	if err := packageFile(rawPath, archivePath, write); err != nil {
		_ = os.Remove(archivePath)
		return artifact.Artifact{}, err
	}

	// packageFile has released the raw file handle by now.
	if err := os.Remove(rawPath); err != nil {
		return artifact.Artifact{}, backuperr.New(backuperr.ErrIO, "remove raw dump", err).WithPath(rawPath)
	}

	return artifact.Stat(archivePath)
}

func packageFile(rawPath, archivePath string, write entryWriter) error {
	src, err := os.Open(rawPath)
	if err != nil {
		return backuperr.New(backuperr.ErrArchive, "open raw dump", err).WithPath(rawPath)
	}
	defer src.Close()

	dst, err := os.Create(archivePath)
	if err != nil {
		return backuperr.New(backuperr.ErrArchive, "create container", err).WithPath(archivePath)
	}

	if err := write(dst, filepath.Base(rawPath), src); err != nil {
		_ = dst.Close()
		return backuperr.New(backuperr.ErrArchive, "write container", err).WithPath(archivePath)
	}
	if err := dst.Close(); err != nil {
		return backuperr.New(backuperr.ErrArchive, "close container", err).WithPath(archivePath)
	}
	return nil
}
