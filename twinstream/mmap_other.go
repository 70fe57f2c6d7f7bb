//go:build !linux

package twinstream

import (
	"fmt"
	"io"
	"os"
)

// mmapReaderAt falls back to a plain io.ReaderAt on non-Linux platforms:
// OpenMmap just wraps the file, no page mapping. Linux builds always use
// mmap_linux.go instead.
type mmapReaderAt struct {
	f *os.File
}

func OpenMmap(f *os.File) (*mmapReaderAt, error) {
	return &mmapReaderAt{f: f}, nil
}

func (m *mmapReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := m.f.ReadAt(p, off)
	if err == io.EOF && n > 0 {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("twinstream: read at %d: %w", off, err)
	}
	return n, nil
}

func (m *mmapReaderAt) Close() error { return nil }
