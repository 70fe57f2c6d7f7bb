// Package xref implements the cross-reference table (XTable): a dense,
// object-number-indexed map from object id to its storage location, the
// free-slot chain used to recycle deleted ids, and the text/binary wire
// codecs for reading and writing XREF sections.
//
// A Table is either one input revision (read-only once parsed) or the
// master table the engine mutates as objects are rewritten, deleted, or
// appended; both share the same representation.
package xref

import (
	"fmt"
	"sort"
)

// Kind discriminates the three row types a cross-reference entry can
// take, matching the /Type field (0, 1, 2) of a binary XRef stream row.
type Kind uint8

const (
	Free Kind = iota
	Used
	Compressed
)

// Entry is one object's location. Offset is valid only for Used rows,
// or as the "next free object number" link for Free rows; Container and
// Member are valid only for Compressed rows.
type Entry struct {
	Kind       Kind
	Offset     int64
	Generation int

	Container int // object stream holding this object, when Compressed
	Member    int // index of this object within that stream, when Compressed
}

// Table is a dense object-id -> Entry map, along with the free-slot
// chain rooted at object 0 (ISO 32000-1 7.5.4).
type Table struct {
	entries map[int]Entry
	size    int // one past the highest object number the table claims to describe
}

// New returns an empty table with object 0 initialized as the (empty)
// head of the free-slot chain, as every XTable must have.
func New() *Table {
	t := &Table{entries: make(map[int]Entry)}
	t.entries[0] = Entry{Kind: Free, Offset: 0, Generation: 65535}
	t.size = 1
	return t
}

// Size reports the table's /Size: one past the highest object number it
// describes.
func (t *Table) Size() int { return t.size }

// SetSize grows the table's claimed size without creating entries; used
// when parsing a trailer's /Size before any rows have been applied.
func (t *Table) SetSize(n int) {
	if n > t.size {
		t.size = n
	}
}

// Get returns the entry for an object number, and whether it is known
// to this table at all.
func (t *Table) Get(num int) (Entry, bool) {
	e, ok := t.entries[num]
	return e, ok
}

// Has reports whether num has any entry recorded.
func (t *Table) Has(num int) bool {
	_, ok := t.entries[num]
	return ok
}

// set installs an entry, growing Size if needed.
func (t *Table) set(num int, e Entry) {
	t.entries[num] = e
	if num+1 > t.size {
		t.size = num + 1
	}
}

// SetEntry installs an arbitrary entry verbatim, growing Size if needed.
// Used by the binary and text XREF section decoders (package engine),
// which already hold a fully-formed Entry from the wire format and have
// no need for SetUsed/SetCompressed's narrower constructors.
func (t *Table) SetEntry(num int, e Entry) { t.set(num, e) }

// SetUsed records num as a live object stored at a direct file offset.
func (t *Table) SetUsed(num int, offset int64, generation int) {
	t.set(num, Entry{Kind: Used, Offset: offset, Generation: generation})
}

// SetCompressed records num as a member of an object stream.
func (t *Table) SetCompressed(num, container, member int) {
	t.set(num, Entry{Kind: Compressed, Container: container, Member: member})
}

// ApplyIfAbsent installs e for num only if the table has no entry yet
// for that number. Used when folding an older revision's rows into a
// table that already holds newer ones: "older entries cover only
// objects not already bound" (spec.md 4.5.1).
func (t *Table) ApplyIfAbsent(num int, e Entry) {
	if _, ok := t.entries[num]; ok {
		return
	}
	t.set(num, e)
}

// MergeOlder folds every entry of an older (lower-priority) revision
// into t, without overwriting entries t already has.
func (t *Table) MergeOlder(older *Table) {
	for num, e := range older.entries {
		t.ApplyIfAbsent(num, e)
	}
	if older.size > t.size {
		t.size = older.size
	}
}

// Delete marks num free and prepends it to the free-slot chain rooted
// at object 0, bumping its generation so a future reuse of the number
// carries a fresh generation per ISO 32000-1 7.5.4.
func (t *Table) Delete(num int) error {
	if num == 0 {
		return fmt.Errorf("xref: object 0 is reserved as the free-list head")
	}
	cur, ok := t.entries[num]
	gen := 0
	if ok {
		gen = cur.Generation
	}
	if gen < 65535 {
		gen++
	}
	head := t.entries[0]
	t.set(num, Entry{Kind: Free, Offset: head.Offset, Generation: gen})
	head.Offset = int64(num)
	t.entries[0] = head
	return nil
}

// AllocFreeSlot implements spec §4.5.4's create-object-now/
// create-object-appended allocation: scan the free-slot chain rooted at
// object 0 for the first reusable number, promoting it to Used. If the
// chain is exhausted (points back to 0), a brand new object number is
// appended instead, as spec §3's entity invariant requires ("on append/
// insert, the parser scans for a freed slot, promoting it to used before
// handing the ID to the caller").
func (t *Table) AllocFreeSlot() int {
	head := t.entries[0]
	if head.Offset != 0 {
		num := int(head.Offset)
		freed := t.entries[num]
		head.Offset = freed.Offset
		t.entries[0] = head
		t.set(num, Entry{Kind: Used, Generation: freed.Generation})
		return num
	}
	num := t.size
	t.set(num, Entry{Kind: Used})
	return num
}

// Numbers returns every object number the table has an entry for, sorted
// ascending. Used by the engine's end-of-file skip-tree consistency check
// and by the serializer when emitting subsections.
func (t *Table) Numbers() []int {
	out := make([]int, 0, len(t.entries))
	for n := range t.entries {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
