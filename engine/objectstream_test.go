package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnegard/pdfmutate/twinstream"
	"github.com/arnegard/pdfmutate/xref"
)

// buildObjectStreamFixture returns a minimal file containing one object
// 5, a /Type /ObjStm container holding two compressed members: object 6
// (the integer 42) and object 7 (the literal string "hi").
func buildObjectStreamFixture(t *testing.T) (data []byte, containerOffset int64) {
	t.Helper()
	containerText := "5 0 obj\n<< /Type /ObjStm /N 2 /First 7 /Length 14 >>\nstream\n6 0 7 342 (hi)\nendstream\nendobj\n"
	data = []byte("%PDF-1.4\n" + containerText)
	containerOffset = int64(bytes.Index(data, []byte("5 0 obj")))
	require.GreaterOrEqual(t, containerOffset, int64(0))
	return data, containerOffset
}

func newBareMutator(data []byte) *Mutator {
	var out bytes.Buffer
	return &Mutator{
		cfg:         NewDefaultConfiguration(),
		ts:          twinstream.New(bytes.NewReader(data), int64(len(data)), &out),
		objCache:    make(map[int]*Object),
		streamCache: make(map[int][]streamMember),
		master:      xref.New(),
	}
}

func TestDecodeObjectStreamParsesCompressedMembers(t *testing.T) {
	data, containerOffset := buildObjectStreamFixture(t)
	m := newBareMutator(data)
	m.master.SetUsed(5, containerOffset, 0)

	members, err := m.decodeObjectStream(5)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, 6, members[0].num)
	n, ok := members[0].def.Int()
	require.True(t, ok)
	assert.Equal(t, 42, n)

	assert.Equal(t, 7, members[1].num)
	s, ok := members[1].def.StringBytes()
	require.True(t, ok)
	assert.Equal(t, "hi", string(s))

	// decoding is cached: a second call must not re-parse.
	again, err := m.decodeObjectStream(5)
	require.NoError(t, err)
	assert.Same(t, &members[0], &again[0])
}

func TestLocateCompressedMemberResolvesViaContainer(t *testing.T) {
	data, containerOffset := buildObjectStreamFixture(t)
	m := newBareMutator(data)
	m.master.SetUsed(5, containerOffset, 0)
	m.master.SetCompressed(6, 5, 0)

	obj, err := m.locateObject(6, 0, true)
	require.NoError(t, err)
	assert.Equal(t, ClassCompressedMember, obj.Class)
	assert.Equal(t, 6, obj.Num)
	n, ok := obj.Def.Int()
	require.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestLocateCompressedMemberOutOfRangeErrors(t *testing.T) {
	data, containerOffset := buildObjectStreamFixture(t)
	m := newBareMutator(data)
	m.master.SetUsed(5, containerOffset, 0)
	m.master.SetCompressed(99, 5, 9)

	_, err := m.locateObject(99, 0, true)
	assert.Error(t, err)
}
