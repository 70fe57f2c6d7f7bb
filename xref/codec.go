package xref

import (
	"bytes"
	"fmt"
	"io"
)

// textRowWidth is the fixed width of one text-form XREF row: ten-digit
// offset, one space, five-digit generation, one space, one-letter type,
// then a two-byte EOL as ISO 32000-1 7.5.4 requires (PDF producers vary
// between "\r\n" and " \n"; we always write " \n" and accept either on
// read, matching the teacher's lenient reader posture).
const textRowWidth = 20

// ParseTextRow parses one 20-byte text-form XREF row.
func ParseTextRow(line []byte) (Entry, error) {
	if len(line) < 18 {
		return Entry{}, fmt.Errorf("xref: text row too short: %q", line)
	}
	var offset int64
	for _, b := range line[0:10] {
		if b < '0' || b > '9' {
			return Entry{}, fmt.Errorf("xref: text row offset not numeric: %q", line)
		}
		offset = offset*10 + int64(b-'0')
	}
	gen := 0
	for _, b := range line[11:16] {
		if b < '0' || b > '9' {
			return Entry{}, fmt.Errorf("xref: text row generation not numeric: %q", line)
		}
		gen = gen*10 + int(b-'0')
	}
	switch line[17] {
	case 'n':
		return Entry{Kind: Used, Offset: offset, Generation: gen}, nil
	case 'f':
		return Entry{Kind: Free, Offset: offset, Generation: gen}, nil
	default:
		return Entry{}, fmt.Errorf("xref: text row has unknown type %q", line[17])
	}
}

// WriteTextRow renders one entry in the fixed 20-byte text form.
func WriteTextRow(e Entry) []byte {
	letter := byte('n')
	if e.Kind == Free {
		letter = 'f'
	}
	return []byte(fmt.Sprintf("%010d %05d %c \n", e.Offset, e.Generation, letter))
}

// subsection is a contiguous run of object numbers sharing one "first
// count" text-XREF header (spec §4.5.1 step 2).
type subsection struct {
	first int
	nums  []int
}

func subsections(nums []int) []subsection {
	var out []subsection
	for _, n := range nums {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.nums[len(last.nums)-1]+1 == n {
				last.nums = append(last.nums, n)
				continue
			}
		}
		out = append(out, subsection{first: n, nums: []int{n}})
	}
	return out
}

// WriteText serializes the table as the text XREF form: one or more
// subsections, each "first count\n" followed by count fixed-width rows.
// The caller writes the surrounding "xref\n" keyword and "trailer\n<<...>>"
// block; this only emits the subsection bodies.
func (t *Table) WriteText(w io.Writer) error {
	nums := t.Numbers()
	for _, sub := range subsections(nums) {
		if _, err := fmt.Fprintf(w, "%d %d\n", sub.first, len(sub.nums)); err != nil {
			return err
		}
		for _, n := range sub.nums {
			if _, err := w.Write(WriteTextRow(t.entries[n])); err != nil {
				return err
			}
		}
	}
	return nil
}

// widthsFor computes the minimal per-field byte widths (/W) needed to
// losslessly encode every entry in a binary XRef stream: type is always 1
// byte (values 0-2 always fit), field2 must hold the largest offset or
// container id, field3 the largest generation or member index.
func widthsFor(entries map[int]Entry) [3]int {
	w := [3]int{1, 1, 1}
	grow := func(idx int, v int64) {
		n := 1
		for v >= 1<<(8*n) {
			n++
		}
		if n > w[idx] {
			w[idx] = n
		}
	}
	for _, e := range entries {
		switch e.Kind {
		case Used:
			grow(1, e.Offset)
			grow(2, int64(e.Generation))
		case Compressed:
			grow(1, int64(e.Container))
			grow(2, int64(e.Member))
		case Free:
			grow(1, e.Offset)
			grow(2, int64(e.Generation))
		}
	}
	return w
}

// WriteBinary encodes the table as the raw (pre-filter) byte stream of a
// /Type /XRef cross-reference stream, along with the /W widths it used.
func (t *Table) WriteBinary() ([]byte, [3]int) {
	nums := t.Numbers()
	w := widthsFor(t.entries)
	var buf bytes.Buffer
	for _, n := range nums {
		e := t.entries[n]
		var typ, f2, f3 int64
		switch e.Kind {
		case Free:
			typ, f2, f3 = 0, e.Offset, int64(e.Generation)
		case Used:
			typ, f2, f3 = 1, e.Offset, int64(e.Generation)
		case Compressed:
			typ, f2, f3 = 2, int64(e.Container), int64(e.Member)
		}
		writeBE(&buf, typ, w[0])
		writeBE(&buf, f2, w[1])
		writeBE(&buf, f3, w[2])
	}
	return buf.Bytes(), w
}

func writeBE(buf *bytes.Buffer, v int64, width int) {
	for i := width - 1; i >= 0; i-- {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}

// ParseBinaryRows decodes the raw (already filter-decoded) byte stream of
// a /Type /XRef stream into entries, using the given /W widths and the
// object numbers named by /Index (pairs of first/count; nums must already
// be expanded by the caller to one entry per row).
func ParseBinaryRows(data []byte, w [3]int, nums []int) (map[int]Entry, error) {
	rowSize := w[0] + w[1] + w[2]
	if rowSize == 0 {
		return nil, fmt.Errorf("xref: binary XRef has zero-width row")
	}
	if len(data) < rowSize*len(nums) {
		return nil, fmt.Errorf("xref: binary XRef stream too short for %d rows", len(nums))
	}
	out := make(map[int]Entry, len(nums))
	pos := 0
	for _, num := range nums {
		typ := readBE(data[pos:], w[0])
		pos += w[0]
		f2 := readBE(data[pos:], w[1])
		pos += w[1]
		f3 := readBE(data[pos:], w[2])
		pos += w[2]

		// /W[0] == 0 means "type defaults to 1" per ISO 32000-1 Table 17.
		if w[0] == 0 {
			typ = 1
		}
		switch typ {
		case 0:
			out[num] = Entry{Kind: Free, Offset: f2, Generation: int(f3)}
		case 1:
			out[num] = Entry{Kind: Used, Offset: f2, Generation: int(f3)}
		case 2:
			out[num] = Entry{Kind: Compressed, Container: int(f2), Member: int(f3)}
		default:
			return nil, fmt.Errorf("xref: binary XRef row has unknown type %d", typ)
		}
	}
	return out, nil
}

func readBE(b []byte, width int) int64 {
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(b[i])
	}
	return v
}

// ExpandIndex turns a /Index array's (first, count) pairs into the flat
// object-number list ParseBinaryRows expects. When /Index is absent the
// caller passes the single pair [0 Size] (ISO 32000-1 7.5.8.2).
func ExpandIndex(pairs [][2]int) []int {
	var out []int
	for _, p := range pairs {
		for n := p[0]; n < p[0]+p[1]; n++ {
			out = append(out, n)
		}
	}
	return out
}
