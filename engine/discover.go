package engine

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/arnegard/pdfmutate/classify"
	"github.com/arnegard/pdfmutate/filters"
	"github.com/arnegard/pdfmutate/pdfval"
	"github.com/arnegard/pdfmutate/scanner"
	"github.com/arnegard/pdfmutate/twinstream"
	"github.com/arnegard/pdfmutate/xref"
)

// revisionSpan marks an input byte range that belongs to cross-reference
// machinery - an "xref" section and its trailer, a /Type /XRef stream
// object, or the trailing "startxref\nN\n%%EOF" footer - and must be
// discarded rather than passed through during the main forward pass
// (spec §4.5.3): the master XTable synthesizes one fresh cross-reference
// section at termination instead (spec §4.5.5), so none of the input's
// own xref/trailer bytes survive into the output.
type revisionSpan struct {
	start, end int64
}

func sortSpans(spans []revisionSpan) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
}

// discoverXRefChain implements spec §4.5.1: locate startxref by reverse
// scan, then follow the chain of XREF sections via /Prev, merging older
// revisions' entries only where the newer ones don't already bind an
// object (xref.Table.MergeOlder).
func (m *Mutator) discoverXRefChain() error {
	m.ts.SetMode(twinstream.Reverse)
	startOff, footerStart, err := scanner.LocateStartXRef(m.ts)
	if err != nil {
		return &CorruptXRefError{Detail: err.Error()}
	}
	m.ts.SetMode(twinstream.Forward)

	m.spans = append(m.spans, revisionSpan{start: footerStart, end: m.size})

	seen := map[int64]bool{}
	offset := startOff
	first := true
	for {
		if offset < 0 || offset >= m.size {
			return &CorruptXRefError{Detail: fmt.Sprintf("xref offset %d out of range", offset)}
		}
		if seen[offset] {
			break // cyclic /Prev chain: stop instead of looping forever
		}
		seen[offset] = true

		table, trailer, span, isBinary, err := m.parseXRefSectionAt(offset)
		if err != nil {
			return &CorruptXRefError{Detail: fmt.Sprintf("xref section at offset %d: %v", offset, err)}
		}
		m.spans = append(m.spans, span)
		m.revisions = append(m.revisions, table)

		if first {
			m.master = table
			m.trailer = trailer
			m.xrefIsBinary = isBinary
			first = false
		} else {
			m.master.MergeOlder(table)
			m.trailer = mergeTrailerFields(m.trailer, trailer)
		}

		prevVal, ok := trailer.DictGet("Prev")
		if !ok {
			break
		}
		p, ok := prevVal.Int()
		if !ok {
			return &CorruptXRefError{Detail: "trailer /Prev is not an integer"}
		}
		offset = int64(p)
	}

	if m.master == nil {
		return &CorruptXRefError{Detail: "no cross-reference section found"}
	}
	sortSpans(m.spans)
	return nil
}

// mergeTrailerFields folds an older trailer's keys into newer, keeping
// whatever newer already carries (spec §4.5.1: "older entries cover only
// objects not already bound" applies equally to /Root, /Info, /ID and the
// rest of the trailer dictionary's own keys).
func mergeTrailerFields(newer, older pdfval.Value) pdfval.Value {
	for _, k := range older.DictKeys() {
		if _, ok := newer.DictGet(k); !ok {
			v, _ := older.DictGet(k)
			newer.DictSet(k, v)
		}
	}
	return newer
}

// parseXRefSectionAt parses one XREF section - text or binary form (spec
// §4.5.1 steps 2-3) - starting at offset, returning its table, its
// trailer dict, and the input span it occupies so the main iterate pass
// can discard it wholesale.
//
// Unlike locate-definition's object-envelope branch read (capped at 64
// KiB, spec §8), an XREF section has no such bound in the original
// design, so this reads straight through to end-of-file in one BranchRead
// rather than doubling a capped window: an XREF section's own tail is, by
// construction, close to EOF already (see DESIGN.md for the bounded-
// memory tradeoff this accepts).
func (m *Mutator) parseXRefSectionAt(offset int64) (*xref.Table, pdfval.Value, revisionSpan, bool, error) {
	buf, err := m.ts.BranchRead(offset, int(m.size-offset))
	if err != nil {
		return nil, pdfval.Null, revisionSpan{}, false, err
	}

	if hasPrefixAt(buf, 0, "xref") {
		table, trailer, consumed, err := parseTextXRefSection(buf)
		if err != nil {
			return nil, pdfval.Null, revisionSpan{}, false, err
		}
		return table, trailer, revisionSpan{start: offset, end: offset + int64(consumed)}, false, nil
	}

	table, trailer, consumed, err := m.parseBinaryXRefSection(buf)
	if err != nil {
		return nil, pdfval.Null, revisionSpan{}, false, err
	}
	return table, trailer, revisionSpan{start: offset, end: offset + int64(consumed)}, true, nil
}

// parseTextXRefSection parses the text XREF form (spec §4.5.1 step 2):
// one or more "first count" subsections of 20-byte rows, followed by
// "trailer <<...>>". Rows are read by direct byte slicing rather than
// through the scanner's token model (as xreftable.go's
// parseXRefTableEntry does in the teacher), since the grammar has no
// notion of a fixed-width row; only the trailing dictionary is handed to
// the shared grammar.
func parseTextXRefSection(buf []byte) (*xref.Table, pdfval.Value, int, error) {
	pos, err := expectKeyword(buf, 0, "xref")
	if err != nil {
		return nil, pdfval.Null, 0, err
	}

	table := xref.New()
	for {
		p := skipWS(buf, pos)
		if hasPrefixAt(buf, p, "trailer") {
			pos = p + len("trailer")
			break
		}
		first, p2, err := readDecimal(buf, p)
		if err != nil {
			return nil, pdfval.Null, 0, err
		}
		count, p3, err := readDecimal(buf, p2)
		if err != nil {
			return nil, pdfval.Null, 0, err
		}
		p4 := consumeLineRaw(buf, p3)
		for i := 0; i < count; i++ {
			if p4+20 > len(buf) {
				return nil, pdfval.Null, 0, fmt.Errorf("xref: truncated subsection row for object %d", first+i)
			}
			e, err := xref.ParseTextRow(buf[p4 : p4+20])
			if err != nil {
				return nil, pdfval.Null, 0, err
			}
			table.SetEntry(first+i, e)
			p4 += 20
		}
		table.SetSize(first + count)
		pos = p4
	}

	sub := scanner.NewFromBytes(buf[pos:])
	trailer, err := sub.ParseValue()
	if err != nil {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: trailer dictionary: %w", err)
	}
	return table, trailer, pos + int(sub.Offset()), nil
}

// parseBinaryXRefSection parses a /Type /XRef stream object (spec §4.5.1
// step 3): its own dict doubles as the trailer, and its decoded stream is
// a sequence of W[0]+W[1]+W[2]-byte rows.
func (m *Mutator) parseBinaryXRefSection(buf []byte) (*xref.Table, pdfval.Value, int, error) {
	sc := scanner.NewFromBytes(buf)
	if _, err := sc.ParseObjectHeader(); err != nil {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: object header: %w", err)
	}
	dict, err := sc.ParseValue()
	if err != nil {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: stream dictionary: %w", err)
	}
	if kw, err := sc.ReadKeyword(); err != nil || kw != "stream" {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: expected \"stream\" keyword")
	}
	sc.ConsumeStreamLineBreak()

	lengthVal, ok := dict.DictGet("Length")
	if !ok {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: missing /Length")
	}
	length, ok := lengthVal.Int()
	if !ok {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: /Length must be a direct integer in an XRef stream")
	}
	rawStart := int(sc.Offset())
	if rawStart+length > len(buf) {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: stream declares %d bytes past end of file", length)
	}
	raw := buf[rawStart : rawStart+length]

	decoded := raw
	chain, err := filters.ParseChain(dictOrNull(dict, "Filter"), dictOrNull(dict, "DecodeParms"), identityResolve)
	if err != nil {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: %w", err)
	}
	if len(chain) > 0 {
		r, err := chain.DecodeReader(bytes.NewReader(raw))
		if err != nil {
			return nil, pdfval.Null, 0, fmt.Errorf("xref: decoding stream: %w", err)
		}
		decoded, err = io.ReadAll(r)
		if err != nil {
			return nil, pdfval.Null, 0, fmt.Errorf("xref: decoding stream: %w", err)
		}
	}

	w, err := parseWidths(dict)
	if err != nil {
		return nil, pdfval.Null, 0, err
	}
	nums, err := parseIndex(dict)
	if err != nil {
		return nil, pdfval.Null, 0, err
	}
	rows, err := xref.ParseBinaryRows(decoded, w, nums)
	if err != nil {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: %w", err)
	}

	table := xref.New()
	for num, e := range rows {
		table.SetEntry(num, e)
	}
	if sz, ok := dictOrNull(dict, "Size").Int(); ok {
		table.SetSize(sz)
	}

	tailBuf := buf[rawStart+length:]
	tailScanner := scanner.NewFromBytes(tailBuf)
	if kw, err := tailScanner.ReadKeyword(); err != nil || kw != "endstream" {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: expected \"endstream\" keyword")
	}
	if kw, err := tailScanner.ReadKeyword(); err != nil || kw != "endobj" {
		return nil, pdfval.Null, 0, fmt.Errorf("xref: expected \"endobj\" keyword")
	}
	consumed := rawStart + length + int(tailScanner.Offset())
	return table, dict, consumed, nil
}

func identityResolve(v pdfval.Value) (pdfval.Value, error) { return v, nil }

func dictOrNull(d pdfval.Value, key string) pdfval.Value {
	v, ok := d.DictGet(key)
	if !ok {
		return pdfval.Null
	}
	return v
}

func parseWidths(dict pdfval.Value) ([3]int, error) {
	wv, ok := dict.DictGet("W")
	if !ok {
		return [3]int{}, fmt.Errorf("xref: missing /W")
	}
	arr, ok := wv.Array()
	if !ok || len(arr) != 3 {
		return [3]int{}, fmt.Errorf("xref: /W must be a 3-element array")
	}
	var w [3]int
	for i, v := range arr {
		n, ok := v.Int()
		if !ok {
			return [3]int{}, fmt.Errorf("xref: /W entries must be integers")
		}
		w[i] = n
	}
	return w, nil
}

func parseIndex(dict pdfval.Value) ([]int, error) {
	size, _ := dictOrNull(dict, "Size").Int()
	iv, ok := dict.DictGet("Index")
	if !ok {
		return xref.ExpandIndex([][2]int{{0, size}}), nil
	}
	arr, ok := iv.Array()
	if !ok || len(arr)%2 != 0 {
		return nil, fmt.Errorf("xref: /Index must be an even-length array")
	}
	pairs := make([][2]int, len(arr)/2)
	for i := range pairs {
		f, ok1 := arr[2*i].Int()
		c, ok2 := arr[2*i+1].Int()
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("xref: /Index entries must be integers")
		}
		pairs[i] = [2]int{f, c}
	}
	return xref.ExpandIndex(pairs), nil
}

// --- small raw-buffer helpers for the text XREF form, where rows are
// fixed-width and not shaped like grammar tokens. ---

func skipWS(buf []byte, pos int) int {
	for pos < len(buf) && classify.IsWhitespace(buf[pos]) {
		pos++
	}
	return pos
}

func consumeLineRaw(buf []byte, pos int) int {
	for pos < len(buf) && buf[pos] != '\n' {
		pos++
	}
	if pos < len(buf) {
		pos++
	}
	return pos
}

func hasPrefixAt(buf []byte, pos int, s string) bool {
	return pos+len(s) <= len(buf) && string(buf[pos:pos+len(s)]) == s
}

func expectKeyword(buf []byte, pos int, kw string) (int, error) {
	pos = skipWS(buf, pos)
	if !hasPrefixAt(buf, pos, kw) {
		return pos, fmt.Errorf("xref: expected keyword %q", kw)
	}
	return pos + len(kw), nil
}

func readDecimal(buf []byte, pos int) (int, int, error) {
	pos = skipWS(buf, pos)
	start := pos
	for pos < len(buf) && buf[pos] >= '0' && buf[pos] <= '9' {
		pos++
	}
	if pos == start {
		return 0, pos, fmt.Errorf("xref: expected an integer at offset %d", pos)
	}
	n := 0
	for _, b := range buf[start:pos] {
		n = n*10 + int(b-'0')
	}
	return n, pos, nil
}
