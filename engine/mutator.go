// Package engine implements the parser/XREF engine (spec §4.5): a single
// forward pass over a PDF that discovers the cross-reference chain,
// resolves every live object (including members of compressed object
// streams), and drives per-object rewrite or pass-through through a
// caller-supplied callback, while keeping cross-reference integrity
// across the whole document.
package engine

import (
	"fmt"
	"io"
	"log"

	"github.com/arnegard/pdfmutate/crypt"
	"github.com/arnegard/pdfmutate/pdfval"
	"github.com/arnegard/pdfmutate/scanner"
	"github.com/arnegard/pdfmutate/twinstream"
	"github.com/arnegard/pdfmutate/xref"
)

// Action is a callback's verdict for one object (spec §4.5.3/§4.5.4).
type Action uint8

const (
	// Done accepts whatever the callback set on the Object (pass-through
	// if untouched, rewrite if it called SetDefinition/SetStream/
	// DeleteObject) and continues the pass.
	Done Action = iota
	// Failure aborts the pass; Run returns a CallerAbortError.
	Failure
	// SkipRest stops invoking the callback for the remainder of the
	// document; every object from here on is passed through unmodified.
	SkipRest
	// Unload drops the callback after this invocation: the current object
	// is handled as for Done, and every object from here on is passed
	// through unmodified without invoking the callback.
	Unload
)

// Callback is invoked once per live object encountered during the
// forward pass (spec §4.5.3). It mutates obj in place via SetDefinition,
// SetStream, DeleteObject, or leaves it untouched, then returns an
// Action.
type Callback func(m *Mutator, obj *Object) Action

// Mutator drives one single-pass mutation of a PDF document (spec §4).
// It owns the twin stream transport, the shared grammar scanner, the
// discovered cross-reference chain, and the object/stream caches built
// up as objects are resolved.
type Mutator struct {
	cfg *Configuration
	log *log.Logger

	size int64
	ts   *twinstream.Stream
	sc   *scanner.Scanner

	master       *xref.Table
	revisions    []*xref.Table
	xrefIsBinary bool
	trailer      pdfval.Value
	spans        []revisionSpan

	crypt      *crypt.Handler
	linearized bool

	objCache    map[int]*Object
	streamCache map[int][]streamMember

	visited  map[int]bool
	skipRest bool

	pendingNow    []*Object
	pendingAppend []*Object

	cb Callback
}

// NewMutator discovers the cross-reference chain of src (size bytes
// long), authenticates any encryption, and readies a Mutator to run a
// pass writing to out. Nothing is written to out until Run is called.
func NewMutator(src io.ReaderAt, size int64, out io.Writer, cfg *Configuration) (*Mutator, error) {
	if cfg == nil {
		cfg = NewDefaultConfiguration()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Mutator{
		cfg:         cfg,
		log:         cfg.logger(),
		size:        size,
		ts:          twinstream.New(src, size, out),
		objCache:    make(map[int]*Object),
		streamCache: make(map[int][]streamMember),
		visited:     make(map[int]bool),
	}

	if err := m.discoverXRefChain(); err != nil {
		return nil, err
	}
	if err := m.setupEncryption(); err != nil {
		return nil, err
	}

	m.ts.SetMode(twinstream.ReadWrite)
	m.sc = scanner.NewFromStream(m.ts)
	return m, nil
}

// Trailer returns the merged trailer dictionary discovered across the
// whole /Prev chain (spec §4.5.1).
func (m *Mutator) Trailer() pdfval.Value { return m.trailer }

// Root returns the document catalog's indirect reference, if present.
func (m *Mutator) Root() (pdfval.Value, bool) { return m.trailer.DictGet("Root") }

// Run iterates every live object in file order, invoking cb on each, and
// finishes by synthesizing one fresh master cross-reference section
// (spec §4.5.5). Objects superseded by a later incremental revision are
// copied as plain input bytes without invoking cb, as are whitespace and
// comments between objects. The revisions' own xref/trailer sections and
// the startxref footer are discarded; finish writes their replacement.
func (m *Mutator) Run(cb Callback) error {
	m.cb = cb

	for m.ts.InputOffset() < m.size {
		offset := m.ts.InputOffset()

		if span, ok := m.spanAt(offset); ok {
			if err := m.ts.Discard(int(span.end - offset)); err != nil {
				return err
			}
			continue
		}

		wsStart := m.ts.InputOffset()
		skipErr := m.sc.SkipWhitespace()
		if n := int(m.ts.InputOffset() - wsStart); n > 0 {
			skipped, err := m.ts.BranchRead(wsStart, n)
			if err != nil {
				return err
			}
			if err := m.ts.Insert(skipped); err != nil {
				return err
			}
		}
		if skipErr != nil {
			break
		}
		if m.ts.InputOffset() >= m.size {
			break
		}
		if span, ok := m.spanAt(m.ts.InputOffset()); ok {
			if err := m.ts.PruneTo(m.ts.InputOffset()); err != nil {
				return err
			}
			if err := m.ts.Discard(int(span.end - m.ts.InputOffset())); err != nil {
				return err
			}
			continue
		}

		if err := m.stepObject(); err != nil {
			return err
		}
		if err := m.flushPendingNow(); err != nil {
			return err
		}
	}

	if err := m.ts.CopyRemainder(); err != nil {
		return err
	}
	return m.finish()
}

// spanAt reports the discard span starting at exactly offset, if any.
func (m *Mutator) spanAt(offset int64) (revisionSpan, bool) {
	for _, sp := range m.spans {
		if sp.start == offset {
			return sp, true
		}
		if sp.start > offset {
			break
		}
	}
	return revisionSpan{}, false
}

// stepObject parses the "N G obj ... endobj" envelope at the current
// input offset, decides whether it is the live (master-table-current)
// copy of that object number, and either invokes cb on it or passes it
// through untouched as a superseded revision's orphaned bytes.
//
// The envelope is inspected entirely through branch reads
// (parseEnvelopeAt), so the main cursor is still sitting at headerStart
// once this returns: passthroughObject's PruneTo(obj.end) (unmutated
// path) and PruneTo(obj.headerStart)+Discard+Insert (mutated path) both
// depend on that being true to copy or rewrite the right span.
func (m *Mutator) stepObject() error {
	headerStart := m.ts.InputOffset()
	obj, err := m.parseEnvelopeAt(headerStart)
	if err != nil {
		return &CorruptObjectError{Detail: fmt.Sprintf("at offset %d: %v", headerStart, err)}
	}

	if obj.Num == 0 {
		return m.ts.PruneTo(obj.end)
	}
	if !m.linearized {
		m.detectLinearized(obj)
	}

	entry, ok := m.master.Get(obj.Num)
	isLive := ok && entry.Kind == xref.Used && offsetWithinSlack(entry.Offset, headerStart, int64(m.cfg.OffsetSlack))
	if !isLive {
		// A superseded copy from an earlier incremental revision, or an
		// object the master table has no record of: its bytes are
		// already emitted verbatim up through PruneTo below.
		return m.ts.PruneTo(obj.end)
	}

	m.objCache[obj.Num] = obj
	m.visited[obj.Num] = true

	if m.skipRest || m.cb == nil {
		return m.passthroughObject(obj)
	}

	action := m.cb(m, obj)
	switch action {
	case Failure:
		return &CallerAbortError{Num: obj.Num, Gen: obj.Gen}
	case SkipRest:
		m.skipRest = true
	case Unload:
		m.cb = nil
	case Done:
	}

	if obj.DeleteObject {
		if err := m.ts.Discard(int(obj.end - obj.headerStart)); err != nil {
			return err
		}
		return m.master.Delete(obj.Num)
	}
	return m.passthroughObject(obj)
}

// offsetWithinSlack reports whether two input offsets differ by no more
// than slack bytes, tolerating the small discrepancies some producers
// leave between a recorded xref offset and the object header's actual
// position (spec §4.5.3).
func offsetWithinSlack(a, b, slack int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= slack
}

// passthroughObject writes obj to the output: a verbatim byte copy of
// its original envelope when untouched (spec §4.5.3's pass-through
// fast path), or a freshly serialized envelope reflecting the
// callback's edits, recording the object's new output offset in the
// master table either way.
func (m *Mutator) passthroughObject(obj *Object) error {
	outOffset := m.ts.OutputOffset()
	if !obj.Mutated() {
		if err := m.ts.PruneTo(obj.end); err != nil {
			return err
		}
		m.master.SetUsed(obj.Num, outOffset, obj.Gen)
		return nil
	}

	if obj.HasStream && !obj.SkipStream && !obj.OverrideStream {
		if _, err := m.decryptedRaw(obj); err != nil {
			return err
		}
	}

	if err := m.ts.PruneTo(obj.headerStart); err != nil {
		return err
	}
	if err := m.ts.Discard(int(obj.end - obj.headerStart)); err != nil {
		return err
	}
	out := serializeObject(obj)
	if err := m.ts.Insert(out); err != nil {
		return err
	}
	m.master.SetUsed(obj.Num, outOffset, obj.Gen)
	return nil
}
