package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

func writeGzip(dst io.Writer, entryName string, src *os.File) error {
	gz := gzip.NewWriter(dst)
	gz.Name = entryName
	if fi, err := src.Stat(); err == nil {
		gz.ModTime = fi.ModTime()
	}

	if _, err := io.Copy(gz, src); err != nil {
		_ = gz.Close()
		return fmt.Errorf("gzip copy: %w", err)
	}

	// gzip writes data on Close.
	if err := gz.Close(); err != nil {
		return fmt.Errorf("gzip finalize: %w", err)
	}
	return nil
}
