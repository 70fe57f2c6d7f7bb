package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arnegard/pdfmutate/pdfval"
	"github.com/arnegard/pdfmutate/twinstream"
	"github.com/arnegard/pdfmutate/xref"
)

// flushPendingNow writes every object queued by CreateObjectNow since the
// last flush, in allocation order, immediately at the current output
// position (spec §4.5.4's create-object-now: the new object lands right
// where the forward pass currently is, not at the end of the document).
func (m *Mutator) flushPendingNow() error {
	for _, obj := range m.pendingNow {
		if err := m.writeNewObject(obj); err != nil {
			return err
		}
	}
	m.pendingNow = m.pendingNow[:0]
	return nil
}

// writeNewObject serializes and emits an object that has no input
// envelope of its own (one allocated via CreateObjectNow/
// CreateObjectAppended), recording its output offset in the master
// table.
func (m *Mutator) writeNewObject(obj *Object) error {
	outOffset := m.ts.OutputOffset()
	out := serializeObject(obj)
	if err := m.ts.Insert(out); err != nil {
		return err
	}
	m.master.SetUsed(obj.Num, outOffset, obj.Gen)
	m.visited[obj.Num] = true
	return nil
}

// finish flushes every object queued with CreateObjectAppended, then
// synthesizes one fresh master cross-reference section and trailer
// reflecting every live object's final output offset (spec §4.5.5),
// matching the wire form - text or binary - of the input's own most
// recent revision.
func (m *Mutator) finish() error {
	for _, obj := range m.pendingAppend {
		if err := m.writeNewObject(obj); err != nil {
			return err
		}
	}
	m.pendingAppend = m.pendingAppend[:0]

	if err := m.checkSkipTree(); err != nil {
		return err
	}

	trailer := m.trailer.Clone()
	trailer.DictDelete("Prev")
	trailer.DictDelete("XRefStm")
	trailer.DictDelete("Encrypt") // output is never re-encrypted

	var xrefOffset int64
	var err error
	if m.xrefIsBinary {
		xrefOffset, err = m.writeBinaryXRef(trailer)
	} else {
		xrefOffset, err = m.writeTextXRef(trailer)
	}
	if err != nil {
		return err
	}

	footer := fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)
	return m.ts.Insert([]byte(footer))
}

// checkSkipTree asserts that every object the master table claims as
// live was actually visited during the pass (spec §4.5.5/§8's
// testable end-of-pass property): a live object the forward scan never
// reached means the cross-reference chain pointed somewhere the body
// never matched, an internal inconsistency rather than a recoverable
// per-object error.
func (m *Mutator) checkSkipTree() error {
	for _, num := range m.master.Numbers() {
		entry, ok := m.master.Get(num)
		if !ok || entry.Kind != xref.Used {
			continue
		}
		if !m.visited[num] {
			return &InternalAssertError{Detail: fmt.Sprintf("object %d is live in the master table but was never visited", num)}
		}
	}
	return nil
}

// writeTextXRef emits the classic "xref\n...\ntrailer\n<<...>>" form,
// returning the offset the footer's startxref should name.
func (m *Mutator) writeTextXRef(trailer pdfval.Value) (int64, error) {
	offset := m.ts.OutputOffset()
	trailer.DictSet("Size", pdfval.Number(strconv.Itoa(m.master.Size())))

	if err := m.ts.Insert([]byte("xref\n")); err != nil {
		return 0, err
	}
	if err := m.master.WriteText(insertWriter{m.ts}); err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString("trailer\n")
	trailer.Write(&b)
	b.WriteByte('\n')
	if err := m.ts.Insert([]byte(b.String())); err != nil {
		return 0, err
	}
	return offset, nil
}

// writeBinaryXRef emits a /Type /XRef stream object carrying both the
// cross-reference rows and the trailer fields (ISO 32000-1 7.5.8),
// matching the input's binary form.
func (m *Mutator) writeBinaryXRef(trailer pdfval.Value) (int64, error) {
	num := m.master.AllocFreeSlot()
	offset := m.ts.OutputOffset()
	// The stream lists itself, so its own entry must be installed before
	// WriteBinary renders the rows (ISO 32000-1 7.5.8.2).
	m.master.SetUsed(num, offset, 0)

	rows, w := m.master.WriteBinary()

	dict := trailer
	dict.DictSet("Type", pdfval.Name("XRef"))
	dict.DictSet("Size", pdfval.Number(strconv.Itoa(m.master.Size())))
	dict.DictSet("W", pdfval.Array(
		pdfval.Number(strconv.Itoa(w[0])),
		pdfval.Number(strconv.Itoa(w[1])),
		pdfval.Number(strconv.Itoa(w[2])),
	))
	dict.DictSet("Index", indexArray(m.master.Numbers()))
	dict.DictSet("Length", pdfval.Number(strconv.Itoa(len(rows))))
	dict.DictDelete("Filter")
	dict.DictDelete("DecodeParms")

	var b strings.Builder
	fmt.Fprintf(&b, "%d 0 obj\n", num)
	dict.Write(&b)
	b.WriteString("\nstream\n")
	if err := m.ts.Insert([]byte(b.String())); err != nil {
		return 0, err
	}
	if err := m.ts.Insert(rows); err != nil {
		return 0, err
	}
	if err := m.ts.Insert([]byte("\nendstream\nendobj\n")); err != nil {
		return 0, err
	}
	return offset, nil
}

// indexArray groups a sorted object-number list into contiguous
// (first, count) runs for /Index, mirroring the grouping xref.WriteText
// uses internally for text-form subsections.
func indexArray(nums []int) pdfval.Value {
	var items []pdfval.Value
	i := 0
	for i < len(nums) {
		first := nums[i]
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		items = append(items,
			pdfval.Number(strconv.Itoa(first)),
			pdfval.Number(strconv.Itoa(j-i+1)),
		)
		i = j + 1
	}
	return pdfval.Array(items...)
}

// insertWriter adapts twinstream.Stream.Insert to io.Writer, for
// xref.Table.WriteText's direct-to-writer serialization.
type insertWriter struct{ ts *twinstream.Stream }

func (w insertWriter) Write(p []byte) (int, error) {
	if err := w.ts.Insert(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
