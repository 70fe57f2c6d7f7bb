package xref

import (
	"bytes"
	"testing"
)

func TestTextRowRoundTrip(t *testing.T) {
	e := Entry{Kind: Used, Offset: 1234567890, Generation: 3}
	row := WriteTextRow(e)
	if len(row) != textRowWidth {
		t.Fatalf("row length = %d, want %d", len(row), textRowWidth)
	}
	got, err := ParseTextRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if got != e {
		t.Fatalf("got %+v, want %+v", got, e)
	}
}

func TestAllocFreeSlotReusesFreedNumber(t *testing.T) {
	tbl := New()
	tbl.SetUsed(1, 100, 0)
	tbl.SetUsed(2, 200, 0)
	if err := tbl.Delete(1); err != nil {
		t.Fatal(err)
	}
	got := tbl.AllocFreeSlot()
	if got != 1 {
		t.Fatalf("AllocFreeSlot() = %d, want 1 (reused)", got)
	}
	// the chain is now exhausted, so the next allocation must append.
	got2 := tbl.AllocFreeSlot()
	if got2 != 3 {
		t.Fatalf("AllocFreeSlot() = %d, want 3 (appended)", got2)
	}
}

func TestMergeOlderDoesNotOverwrite(t *testing.T) {
	master := New()
	master.SetUsed(5, 500, 0)
	older := New()
	older.SetUsed(5, 999, 0)
	older.SetUsed(6, 600, 0)
	master.MergeOlder(older)

	e5, _ := master.Get(5)
	if e5.Offset != 500 {
		t.Fatalf("newer revision's entry for 5 was overwritten: %+v", e5)
	}
	e6, _ := master.Get(6)
	if e6.Offset != 600 {
		t.Fatalf("older revision's entry for 6 was not folded in: %+v", e6)
	}
}

func TestBinaryRowRoundTrip(t *testing.T) {
	tbl := New()
	tbl.SetUsed(1, 1000, 0)
	tbl.SetCompressed(2, 10, 3)
	raw, w := tbl.WriteBinary()

	nums := ExpandIndex([][2]int{{0, tbl.Size()}})
	got, err := ParseBinaryRows(raw, w, nums)
	if err != nil {
		t.Fatal(err)
	}
	if got[1] != (Entry{Kind: Used, Offset: 1000, Generation: 0}) {
		t.Fatalf("entry 1 = %+v", got[1])
	}
	if got[2] != (Entry{Kind: Compressed, Container: 10, Member: 3}) {
		t.Fatalf("entry 2 = %+v", got[2])
	}
}

func TestWriteTextSubsections(t *testing.T) {
	tbl := New()
	tbl.SetUsed(1, 10, 0)
	tbl.SetUsed(2, 20, 0)
	tbl.SetUsed(5, 50, 0)

	var buf bytes.Buffer
	if err := tbl.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	want := "0 3\n" +
		string(WriteTextRow(tbl.entries[0])) +
		string(WriteTextRow(tbl.entries[1])) +
		string(WriteTextRow(tbl.entries[2])) +
		"5 1\n" +
		string(WriteTextRow(tbl.entries[5]))
	if buf.String() != want {
		t.Fatalf("WriteText() =\n%q\nwant\n%q", buf.String(), want)
	}
}
