package dump

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dev-tams/sqlbackup/internal/artifact"
	"github.com/dev-tams/sqlbackup/internal/backuperr"
)

const headerTimeLayout = "2006-01-02 15:04:05"

// Composer writes the complete dump of one database.
type Composer struct {
	Serializer Serializer
	Database   string
	Charset    string
	// Started is the run start time printed in the header.
	Started time.Time
	// SingleTransaction reads every table inside one consistent snapshot.
	SingleTransaction bool
}

// Stats summarizes one composed stream.
type Stats struct {
	Tables int
	Bytes  int64
}

// Compose writes the dump to outputPath. The file is written under a
// temporary name and renamed into place only after every table succeeded,
// so a failed run never leaves a partial dump at outputPath.
func (c *Composer) Compose(ctx context.Context, src Source, outputPath string) (artifact.Artifact, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return artifact.Artifact{}, backuperr.New(backuperr.ErrIO, "create destination directory", err).WithPath(filepath.Dir(outputPath))
	}

	tmpPath := outputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return artifact.Artifact{}, backuperr.New(backuperr.ErrIO, "create dump file", err).WithPath(tmpPath)
	}

	bw := bufio.NewWriterSize(f, 64*1024)
	stats, err := c.WriteTo(ctx, src, bw)
	if err == nil {
		if ferr := bw.Flush(); ferr != nil {
			err = backuperr.New(backuperr.ErrIO, "flush dump file", ferr).WithPath(tmpPath)
		}
	}
	if err == nil {
		if serr := f.Sync(); serr != nil {
			err = backuperr.New(backuperr.ErrIO, "sync dump file", serr).WithPath(tmpPath)
		}
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = backuperr.New(backuperr.ErrIO, "close dump file", cerr).WithPath(tmpPath)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return artifact.Artifact{}, err
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return artifact.Artifact{}, backuperr.New(backuperr.ErrIO, "rename dump file", err).WithPath(outputPath)
	}

	log.WithFields(log.Fields{
		"db":     c.Database,
		"tables": stats.Tables,
		"bytes":  stats.Bytes,
		"path":   outputPath,
	}).Debug("dump composed")

	return artifact.Stat(outputPath)
}

// WriteTo streams the dump to w: header, constraint checks off, a structure
// and data block per table in enumeration order, constraint checks on. The
// first failing table aborts the remaining ones.
func (c *Composer) WriteTo(ctx context.Context, src Source, w io.Writer) (Stats, error) {
	cw := &countingWriter{w: w}
	var stats Stats

	ser := c.serializer()

	if err := src.Exec(ctx, "SET time_zone = '+00:00'"); err != nil {
		return stats, backuperr.New(backuperr.ErrConnection, "set session time zone", err)
	}

	if c.SingleTransaction {
		if err := c.beginSnapshot(ctx, src); err != nil {
			return stats, err
		}
		defer func() {
			if err := src.Exec(context.WithoutCancel(ctx), "ROLLBACK"); err != nil {
				log.WithError(err).Warn("could not release snapshot transaction")
			}
		}()
	}

	tables, err := ListTables(ctx, src)
	if err != nil {
		return stats, err
	}

	if _, err := io.WriteString(cw, c.header(ser.NoBackslashEscapes)); err != nil {
		return stats, backuperr.New(backuperr.ErrIO, "write header", err)
	}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return stats, backuperr.New(backuperr.ErrData, "canceled", err).WithTable(t.Name)
		}
		entry := log.WithFields(log.Fields{"db": c.Database, "table": t.Name})
		entry.Debug("dumping table")

		before := cw.n
		if err := ser.RenderStructure(ctx, src, t.Name, cw); err != nil {
			return stats, err
		}
		if err := ser.RenderData(ctx, src, t.Name, cw); err != nil {
			return stats, err
		}
		stats.Tables++
		entry.WithField("bytes", cw.n-before).Debug("table dumped")
	}

	if _, err := io.WriteString(cw, "SET FOREIGN_KEY_CHECKS=1;\n"); err != nil {
		return stats, backuperr.New(backuperr.ErrIO, "write footer", err)
	}

	stats.Bytes = cw.n
	return stats, nil
}

func (c *Composer) beginSnapshot(ctx context.Context, src Source) error {
	for _, q := range []string{
		"SET SESSION TRANSACTION ISOLATION LEVEL REPEATABLE READ",
		"START TRANSACTION WITH CONSISTENT SNAPSHOT",
	} {
		if err := src.Exec(ctx, q); err != nil {
			return backuperr.New(backuperr.ErrConnection, "start consistent snapshot", fmt.Errorf("%s: %w", q, err))
		}
	}
	return nil
}

// serializer returns the configured serializer, switched to quote doubling
// when the dump charset cannot be backslash-escaped byte by byte.
func (c *Composer) serializer() Serializer {
	s := c.Serializer
	if !s.NoBackslashEscapes && BackslashUnsafe(c.Charset) {
		log.WithField("charset", c.Charset).Debug("charset is not backslash-safe, writing NO_BACKSLASH_ESCAPES literals")
		s.NoBackslashEscapes = true
	}
	return s
}

func (c *Composer) header(noBackslashEscapes bool) string {
	sqlMode := "NO_AUTO_VALUE_ON_ZERO"
	if noBackslashEscapes {
		sqlMode += ",NO_BACKSLASH_ESCAPES"
	}

	h := "-- MySQL Backup\n"
	h += "-- Database: " + c.Database + "\n"
	h += "-- Date: " + c.Started.Format(headerTimeLayout) + "\n\n"
	if c.Charset != "" {
		h += "SET NAMES " + c.Charset + ";\n"
	}
	h += "SET FOREIGN_KEY_CHECKS=0;\n"
	h += "SET SQL_MODE = \"" + sqlMode + "\";\n"
	h += "SET time_zone = \"+00:00\";\n\n"
	return h
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
