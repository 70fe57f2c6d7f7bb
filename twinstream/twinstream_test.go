package twinstream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrowMakesBytesResidentWithoutExtraIO(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789abcdef"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})

	require.NoError(t, s.Grow(4))
	assert.Equal(t, []byte("0123"), s.HeapSlice(4))

	// requesting fewer bytes than already resident must not re-read.
	require.NoError(t, s.Grow(2))
	assert.Equal(t, []byte("01"), s.HeapSlice(2))
}

func TestGrowPastEOFReportsUnexpectedEOF(t *testing.T) {
	src := bytes.NewReader([]byte("short"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})

	err := s.Grow(100)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestGrowRespectsNoGrowthPolicy(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})
	s.SetNoGrowth(true)

	err := s.Grow(4)
	assert.ErrorIs(t, err, ErrOutgrown)
	assert.True(t, s.Outgrown())

	s.SetNoGrowth(false)
	require.NoError(t, s.Grow(4))
	assert.False(t, s.Outgrown())
}

func TestPassThroughWritesResidentAndStreamedSpans(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 20000)
	copy(data, []byte("HEAD"))
	src := bytes.NewReader(data)
	var out bytes.Buffer
	s := New(src, int64(len(data)), &out)

	require.NoError(t, s.PassThrough(len(data)))
	assert.Equal(t, data, out.Bytes())
	assert.Equal(t, int64(len(data)), s.InputOffset())
	assert.Equal(t, int64(len(data)), s.OutputOffset())
}

func TestDiscardAdvancesInputWithoutWriting(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	var out bytes.Buffer
	s := New(src, int64(src.Len()), &out)

	require.NoError(t, s.Discard(4))
	assert.Equal(t, int64(4), s.InputOffset())
	assert.Equal(t, int64(0), s.OutputOffset())
	assert.Equal(t, 0, out.Len())
}

func TestInsertWritesWithoutTouchingInputCursor(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	var out bytes.Buffer
	s := New(src, int64(src.Len()), &out)

	require.NoError(t, s.Insert([]byte("NEW ")))
	assert.Equal(t, "NEW ", out.String())
	assert.Equal(t, int64(0), s.InputOffset())
	assert.Equal(t, int64(4), s.OutputOffset())
}

func TestBranchReadReturnsResidentSliceWithoutSeeking(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789abcdef"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})
	require.NoError(t, s.Grow(10))

	got, err := s.BranchRead(2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), got)
}

func TestBranchReadOutsideHeapFallsBackToSideBuffer(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789abcdef"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})
	require.NoError(t, s.Grow(4)) // heap only covers [0,4)

	got, err := s.BranchRead(10, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), got)
}

func TestBranchReadGrowingReturnsInitialOrClampedSpan(t *testing.T) {
	data := append(bytes.Repeat([]byte{'a'}, 100), []byte("ENDMARK")...)
	src := bytes.NewReader(data)
	s := New(src, int64(len(data)), &bytes.Buffer{})

	got, err := s.BranchReadGrowing(0, 8)
	require.NoError(t, err)
	// the first attempt is too short to be clamped by file size, so the
	// helper returns after exactly one (non-doubled) read.
	assert.Len(t, got, 8)

	got2, err := s.BranchReadGrowing(90, 64*1024)
	require.NoError(t, err)
	assert.Equal(t, data[90:], got2, "a request clamped by file size must return the clamped span")
}

func TestCopyRemainderStreamsEverythingLeft(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	src := bytes.NewReader(data)
	var out bytes.Buffer
	s := New(src, int64(len(data)), &out)

	require.NoError(t, s.Discard(4)) // "the "
	require.NoError(t, s.CopyRemainder())
	assert.Equal(t, data[4:], out.Bytes())
}

func TestReadLineStopsAtLF(t *testing.T) {
	src := bytes.NewReader([]byte("first line\nsecond"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})

	line, err := s.ReadLine(1024)
	require.NoError(t, err)
	assert.Equal(t, "first line", string(line))
}

func TestReadLineStopsAtCRLF(t *testing.T) {
	src := bytes.NewReader([]byte("first line\r\nsecond"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})

	line, err := s.ReadLine(1024)
	require.NoError(t, err)
	assert.Equal(t, "first line", string(line))

	rest, err := s.ReadLine(1024)
	require.NoError(t, err)
	assert.Equal(t, "second", string(rest))
}

func TestReadLineStopsAtBareCR(t *testing.T) {
	src := bytes.NewReader([]byte("first line\rsecond"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})

	line, err := s.ReadLine(1024)
	require.NoError(t, err)
	assert.Equal(t, "first line", string(line))
}

func TestPruneToPassesThroughUpToMark(t *testing.T) {
	data := []byte("0123456789")
	src := bytes.NewReader(data)
	var out bytes.Buffer
	s := New(src, int64(len(data)), &out)

	require.NoError(t, s.PruneTo(5))
	assert.Equal(t, "01234", out.String())
	assert.Equal(t, int64(5), s.InputOffset())
}

func TestPruneToRejectsBackwardsTarget(t *testing.T) {
	data := []byte("0123456789")
	src := bytes.NewReader(data)
	s := New(src, int64(len(data)), &bytes.Buffer{})
	require.NoError(t, s.Discard(5))

	err := s.PruneTo(2)
	assert.Error(t, err)
}

func TestGrowReverseWalksBackwardsFromCurrentAnchor(t *testing.T) {
	data := []byte("0123456789")
	src := bytes.NewReader(data)
	s := New(src, int64(len(data)), &bytes.Buffer{})
	s.SetMode(Reverse)
	s.heapBase = int64(len(data))

	require.NoError(t, s.GrowReverse(4))
	// minChunk rounds the backward read up, so on a file this small the
	// whole thing ends up resident; the tail must still match exactly.
	assert.Equal(t, data, s.heap[:s.heapUsed])
	assert.Equal(t, data[len(data)-4:], s.heap[s.heapUsed-4:s.heapUsed])
}

func TestSetModeToReverseClearsForwardHeap(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	s := New(src, int64(src.Len()), &bytes.Buffer{})
	require.NoError(t, s.Grow(4))
	require.NotZero(t, s.heapUsed)

	s.SetMode(Reverse)
	assert.Equal(t, 0, s.heapUsed)
	assert.Equal(t, 0, s.cursor)
}

func TestRealignCompactsHeapPastHalfCapacity(t *testing.T) {
	data := bytes.Repeat([]byte{'z'}, minChunk*2)
	src := bytes.NewReader(data)
	s := New(src, int64(len(data)), &bytes.Buffer{})

	require.NoError(t, s.Grow(minChunk))
	require.NoError(t, s.Discard(minChunk/2+1))

	assert.Equal(t, int64(minChunk/2+1), s.heapBase, "advancing past half capacity must realign the heap base forward")
	assert.Equal(t, 0, s.cursor)
}
