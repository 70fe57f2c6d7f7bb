//go:build linux

package twinstream

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mmapReaderAt is an io.ReaderAt backed by a read-only mmap of the whole
// file, used as the heap's forward-growth source for the common local-file
// case (spec §4.3 "Heap growth (forward)" never requires the file be
// resident in Go's heap in this case — the kernel owns the pages, and
// ReadAt below is a plain memcpy out of them).
type mmapReaderAt struct {
	data []byte
}

// OpenMmap maps f read-only. The caller keeps f open and owns its
// lifetime; Close unmaps but does not close f.
func OpenMmap(f *os.File) (*mmapReaderAt, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &mmapReaderAt{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("twinstream: mmap failed: %w", err)
	}
	return &mmapReaderAt{data: data}, nil
}

func (m *mmapReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("twinstream: mmap read out of range at %d", off)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mmapReaderAt) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
