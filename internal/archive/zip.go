package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

func writeZip(dst io.Writer, entryName string, src *os.File) error {
	fi, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat raw dump: %w", err)
	}

	zw := zip.NewWriter(dst)

	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("zip header: %w", err)
	}
	hdr.Name = entryName
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("zip entry: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		_ = zw.Close()
		return fmt.Errorf("zip copy: %w", err)
	}

	// zip writes the central directory on Close.
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip finalize: %w", err)
	}
	return nil
}
