// Package twinstream implements the paired input/output byte transport
// described in spec §4.3: a single sliding heap buffer that supports
// pass-through, discard, insertion, branch reads (random-access peeks), and
// transparent re-anchoring when the heap relocates.
//
// Unlike the C original, scanner positions here are plain absolute file
// offsets (int64), not raw pointers into the heap. Re-anchoring after a
// heap move or compaction therefore falls out of always resolving an
// offset against the heap's *current* base rather than needing to walk and
// patch a registry of live pointers (spec's Design Notes §9 point
// "back-pointers" / "arena-allocated nodes addressed by index" steers
// towards exactly this).
package twinstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Mode selects the stream's scanning direction (spec §4.3).
type Mode uint8

const (
	Forward Mode = iota
	Reverse
	Random
	ReadWrite
)

// minChunk is the minimum read size used to amortize I/O on forward growth.
const minChunk = 4096

// maxBranchRetry bounds the length BranchReadGrowing re-requests when a
// read is clamped by the input size.
const maxBranchRetry = 64 * 1024

var ErrOutgrown = errors.New("twinstream: read would exceed the no-growth policy")

// Stream is the twin (input+output) byte transport.
type Stream struct {
	src  io.ReaderAt
	size int64 // total input size, -1 if unknown (e.g. a pure writer-only use)

	out    io.Writer
	outPos int64

	mode Mode

	heap      []byte
	heapBase  int64 // absolute file offset of heap[0]
	heapUsed  int   // number of valid bytes in heap, starting at 0
	cursor    int   // index into heap of the current input read position
	noGrowth  bool
	outgrown  bool

	// branch holds the last branch-read's private side buffer; it is
	// invalidated (overwritten) by the next branch read, exactly as spec
	// §4.3 describes.
	branch       []byte
	branchOffset int64
}

// New creates a stream over src (size bytes long) writing pass-through and
// inserted bytes to out.
func New(src io.ReaderAt, size int64, out io.Writer) *Stream {
	return &Stream{src: src, size: size, out: out, mode: ReadWrite}
}

// SetMode switches the active direction. Forward/ReadWrite share the same
// heap layout; switching to Reverse clears the heap so the next Grow call
// starts a fresh backwards read.
func (s *Stream) SetMode(m Mode) {
	if m == Reverse && s.mode != Reverse {
		s.heap = nil
		s.heapUsed = 0
		s.cursor = 0
	}
	s.mode = m
}

// InputOffset returns the absolute file offset of the current input cursor.
func (s *Stream) InputOffset() int64 {
	return s.heapBase + int64(s.cursor)
}

// OutputOffset returns how many bytes have been written to out so far.
func (s *Stream) OutputOffset() int64 { return s.outPos }

// Size returns the total input length, if known.
func (s *Stream) Size() int64 { return s.size }

// SetNoGrowth toggles the bounded-peek policy used for branch reads that
// must not trigger I/O beyond what's already resident (spec §4.3, "Fatal
// conditions").
func (s *Stream) SetNoGrowth(v bool) { s.noGrowth = v }

// Outgrown reports whether the last Grow call failed the no-growth policy.
func (s *Stream) Outgrown() bool { return s.outgrown }

// Grow ensures that at least n bytes, starting at the current cursor, are
// resident in the heap (forward mode). It is the bounded-memory heart of
// spec §4.3: "if the requested bytes are already available past the
// buffer's end within the heap, the size is extended without I/O".
func (s *Stream) Grow(n int) error {
	s.outgrown = false
	need := s.cursor + n
	if need <= s.heapUsed {
		return nil // already resident
	}

	if s.noGrowth {
		s.outgrown = true
		return ErrOutgrown
	}

	if need <= cap(s.heap) {
		return s.fill(need)
	}

	// Reallocate. Anything still referenced by a caller must have already
	// been copied out (scanner symbols are built into owned []byte as
	// they're read), so a move here needs no pointer patching: see the
	// package doc.
	newCap := cap(s.heap) * 2
	if newCap < need {
		newCap = need
	}
	if newCap < minChunk {
		newCap = minChunk
	}
	fresh := make([]byte, s.heapUsed, newCap)
	copy(fresh, s.heap[:s.heapUsed])
	s.heap = fresh
	return s.fill(need)
}

func (s *Stream) fill(need int) error {
	for need > s.heapUsed {
		readLen := need - s.heapUsed
		if readLen < minChunk {
			readLen = minChunk
		}
		if cap(s.heap) < s.heapUsed+readLen {
			readLen = cap(s.heap) - s.heapUsed
		}
		if readLen <= 0 {
			break
		}
		buf := s.heap[s.heapUsed : s.heapUsed+readLen]
		n, err := s.src.ReadAt(buf, s.heapBase+int64(s.heapUsed))
		s.heap = s.heap[:s.heapUsed+n]
		s.heapUsed += n
		if n == 0 || (err != nil && err != io.EOF) {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		if err == io.EOF {
			break
		}
	}
	if need > s.heapUsed {
		return io.ErrUnexpectedEOF
	}
	s.maybeRealign()
	return nil
}

// maybeRealign implements spec §4.3's "Realignment": once the cursor
// exceeds half the heap capacity, live bytes are compacted to offset 0 and
// the logical anchor shifts forward by the same delta. Because all
// positions are absolute file offsets, no external pointer list needs
// adjusting.
func (s *Stream) maybeRealign() {
	if cap(s.heap) == 0 || s.cursor <= cap(s.heap)/2 {
		return
	}
	delta := s.cursor
	copy(s.heap, s.heap[delta:s.heapUsed])
	s.heapUsed -= delta
	s.heap = s.heap[:s.heapUsed]
	s.heapBase += int64(delta)
	s.cursor = 0
}

// GrowReverse prepends bytes ending at the current logical start of the
// heap, for walking backwards from EOF to find startxref (spec §4.3).
func (s *Stream) GrowReverse(n int) error {
	want := n
	if want < minChunk {
		want = minChunk
	}
	start := s.heapBase - int64(want)
	if start < 0 {
		want += int(start)
		start = 0
	}
	if want <= 0 {
		return io.EOF
	}

	fresh := make([]byte, want+s.heapUsed)
	if s.heapUsed > 0 {
		copy(fresh[want:], s.heap[:s.heapUsed])
	}
	read, err := s.src.ReadAt(fresh[:want], start)
	if err != nil && err != io.EOF {
		return err
	}
	if read < want {
		// shift right so the buffer still ends exactly at the old heap end
		copy(fresh[want-read:], fresh[:want+s.heapUsed])
		fresh = fresh[want-read:]
	}
	s.heap = fresh
	s.heapUsed = len(fresh)
	s.heapBase = start + int64(want-read)
	s.cursor += (want - read)
	return nil
}

// PeekByte returns the byte at the current cursor without advancing it.
// The caller must have already Grow(1)'d (or GrowReverse'd).
func (s *Stream) PeekByte() byte { return s.heap[s.cursor] }

// HeapSlice returns the resident bytes [cursor, cursor+n). Valid only until
// the next Grow/GrowReverse/Realign call; callers needing the bytes beyond
// that point must copy them (as the scanner does when it builds a symbol).
func (s *Stream) HeapSlice(n int) []byte { return s.heap[s.cursor : s.cursor+n] }

// Advance moves the input cursor forward by n bytes (already resident).
func (s *Stream) Advance(n int) { s.cursor += n; s.maybeRealign() }

// AdvanceBack moves the cursor backward by n bytes, for reverse scanning.
func (s *Stream) AdvanceBack(n int) { s.cursor -= n }

// BranchRead returns the len bytes at absolute offset, either as a slice
// into the current heap (if resident) or via a private side buffer filled
// by a seek+read+seek-back. The returned slice is invalidated by the next
// BranchRead call.
func (s *Stream) BranchRead(offset int64, length int) ([]byte, error) {
	if offset >= s.heapBase && offset+int64(length) <= s.heapBase+int64(s.heapUsed) {
		start := int(offset - s.heapBase)
		return s.heap[start : start+length], nil
	}

	if cap(s.branch) < length {
		s.branch = make([]byte, length)
	} else {
		s.branch = s.branch[:length]
	}
	s.branchOffset = offset
	n, err := s.src.ReadAt(s.branch, offset)
	s.branch = s.branch[:n]
	if err != nil && err != io.EOF {
		return nil, err
	}
	return s.branch, nil
}

// BranchReadGrowing branch-reads initial bytes at offset, clamped to the
// end of the input; locate-definition (spec §4.5.2) uses it for object
// envelopes. An unclamped request returns after that one read. A clamped
// request is repeated with a doubling length up to maxBranchRetry, which
// yields the same clamped span. The length is never grown because the
// caller's content did not fit in the bytes returned.
func (s *Stream) BranchReadGrowing(offset int64, initial int) ([]byte, error) {
	length := initial
	for {
		maxLen := length
		if s.size > 0 && offset+int64(maxLen) > s.size {
			maxLen = int(s.size - offset)
		}
		buf, err := s.BranchRead(offset, maxLen)
		if err != nil {
			return nil, err
		}
		if maxLen == length || length >= maxBranchRetry {
			return buf, nil
		}
		length *= 2
		if length > maxBranchRetry {
			length = maxBranchRetry
		}
	}
}

// PassThrough copies the next n heap-resident bytes to the output and
// advances both cursors. Spans exceeding the resident heap are streamed
// directly using the heap as a shuttle.
func (s *Stream) PassThrough(n int) error {
	for n > 0 {
		avail := s.heapUsed - s.cursor
		if avail <= 0 {
			if err := s.Grow(1); err != nil {
				return err
			}
			avail = s.heapUsed - s.cursor
		}
		chunk := n
		if chunk > avail {
			chunk = avail
		}
		if _, err := s.out.Write(s.heap[s.cursor : s.cursor+chunk]); err != nil {
			return err
		}
		s.outPos += int64(chunk)
		s.Advance(chunk)
		n -= chunk
	}
	return nil
}

// Discard advances the input cursor only, without writing anything.
func (s *Stream) Discard(n int) error {
	for n > 0 {
		avail := s.heapUsed - s.cursor
		if avail <= 0 {
			if err := s.Grow(1); err != nil {
				return err
			}
			avail = s.heapUsed - s.cursor
		}
		chunk := n
		if chunk > avail {
			chunk = avail
		}
		s.Advance(chunk)
		n -= chunk
	}
	return nil
}

// Insert writes bytes to the output without touching the input cursor.
func (s *Stream) Insert(data []byte) error {
	n, err := s.out.Write(data)
	s.outPos += int64(n)
	return err
}

// PruneTo passes through bytes up to the absolute input offset mark.
func (s *Stream) PruneTo(mark int64) error {
	n := mark - s.InputOffset()
	if n < 0 {
		return fmt.Errorf("twinstream: PruneTo target %d is behind current offset %d", mark, s.InputOffset())
	}
	return s.PassThrough(int(n))
}

// CopyRemainder streams every remaining input byte to the output, used at
// end-of-file once the XREF chain has been fully consumed.
func (s *Stream) CopyRemainder() error {
	for {
		if err := s.Grow(1); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				break
			}
			return err
		}
		avail := s.heapUsed - s.cursor
		if avail == 0 {
			break
		}
		if err := s.PassThrough(avail); err != nil {
			return err
		}
	}
	return nil
}

// ReadLine reads bytes up to and including the next line terminator
// (\n, \r, or \r\n) starting at the current cursor, without copying past
// EOF. Used by the trailer/startxref scan.
func (s *Stream) ReadLine(maxLen int) ([]byte, error) {
	var out bytes.Buffer
	for out.Len() < maxLen {
		if err := s.Grow(1); err != nil {
			break
		}
		b := s.PeekByte()
		s.Advance(1)
		if b == '\n' {
			break
		}
		if b == '\r' {
			if err := s.Grow(1); err == nil && s.PeekByte() == '\n' {
				s.Advance(1)
			}
			break
		}
		out.WriteByte(b)
	}
	return out.Bytes(), nil
}
