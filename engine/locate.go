package engine

import (
	"errors"
	"fmt"

	"github.com/arnegard/pdfmutate/scanner"
	"github.com/arnegard/pdfmutate/xref"
)

// locateObject resolves an indirect reference to its *Object, caching the
// result by object number: spec §4.5.2's locate-definition, used for
// random-access lookups (resolving /Length, /Encrypt, object stream
// members) at arbitrary points during the pass, independent of wherever
// the main forward iterate currently sits.
//
// useMaster is accepted but not consulted: every lookup goes through the
// mutator's master table, into which discoverXRefChain has already
// folded the earlier revisions' entries.
func (m *Mutator) locateObject(num, gen int, useMaster bool) (*Object, error) {
	if obj, ok := m.objCache[num]; ok {
		return obj, nil
	}

	entry, ok := m.master.Get(num)
	if !ok || entry.Kind == xref.Free {
		return nil, &CorruptObjectError{Num: num, Gen: gen, Detail: "object has no cross-reference entry"}
	}

	var obj *Object
	var err error
	switch entry.Kind {
	case xref.Used:
		obj, err = m.locateDefinition(num, gen, entry.Offset)
	case xref.Compressed:
		obj, err = m.locateCompressedMember(num, entry.Container, entry.Member)
	default:
		return nil, &InternalAssertError{Detail: fmt.Sprintf("object %d has unknown xref kind", num)}
	}
	if err != nil {
		return nil, err
	}
	m.objCache[num] = obj
	return obj, nil
}

// locateDefinition fetches and parses one "N G obj ... endobj" envelope at
// a direct file offset, per spec §4.5.2, from one branch-read window of
// cfg.BranchReadWindow bytes starting at offset (clamped to the end of
// the input by twinstream.BranchReadGrowing). The window is not enlarged
// when the envelope does not fit in it; such an object is reported as a
// CorruptObjectError.
func (m *Mutator) locateDefinition(num, gen int, offset int64) (*Object, error) {
	obj, err := m.parseEnvelopeAt(offset)
	if err != nil {
		return nil, &CorruptObjectError{Num: num, Gen: gen, Detail: err.Error()}
	}
	if obj.Num != num {
		return nil, &CorruptObjectError{Num: num, Gen: gen, Detail: fmt.Sprintf("xref points at object %d, found %d", num, obj.Num)}
	}
	return obj, nil
}

// parseEnvelopeAt parses one "N G obj ... endobj" envelope at a direct
// file offset using only branch reads (spec §4.5.2): the input's main
// cursor is never advanced, so this is equally safe to call from the
// forward pass's current position (engine/mutator.go's stepObject) or
// for a random-access lookup by a cached xref offset (locateDefinition
// above).
//
// The header, dictionary and (for a stream object) the length-governed
// raw body are all resolved from one branch-read window. The
// "endstream"/"endobj" footer, though, is fetched from a *second*,
// separate branch read anchored at the computed footer offset rather
// than sliced out of the same buffer: a stream body can run to
// gigabytes, far past anything that window will ever hold resident, so
// the footer keywords are looked up by their own
// small window instead of indexing past the end of the first one.
func (m *Mutator) parseEnvelopeAt(offset int64) (*Object, error) {
	buf, err := m.ts.BranchReadGrowing(offset, m.cfg.BranchReadWindow)
	if err != nil {
		return nil, err
	}

	sc := scanner.NewFromBytes(buf)
	hdr, err := sc.ParseObjectHeader()
	if err != nil {
		return nil, fmt.Errorf("object header: %w", err)
	}

	def, err := sc.ParseValue()
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}

	obj := newObject(hdr.Num, hdr.Gen, ClassRegular, def, offset)

	kw, err := sc.PeekKeyword()
	if err != nil {
		return nil, fmt.Errorf("expected endobj or stream: %w", err)
	}
	if kw == "stream" {
		if err := sc.ExpectKeyword("stream"); err != nil {
			return nil, fmt.Errorf("expected stream: %w", err)
		}
		sc.ConsumeStreamLineBreak()
		length, err := m.resolveLength(obj)
		if err != nil {
			return nil, err
		}
		obj.rawOffset = offset + sc.Offset()
		obj.rawLength = int64(length)

		footerOffset := obj.rawOffset + obj.rawLength
		footerBuf, err := m.ts.BranchReadGrowing(footerOffset, m.cfg.BranchReadWindow)
		if err != nil {
			return nil, err
		}
		footer := scanner.NewFromBytes(footerBuf)
		if kw2, err := footer.ReadKeyword(); err != nil || kw2 != "endstream" {
			return nil, errors.New("missing endstream keyword")
		}
		if kw2, err := footer.ReadKeyword(); err != nil || kw2 != "endobj" {
			return nil, errors.New("missing endobj keyword")
		}
		obj.end = footerOffset + footer.Offset()
		return obj, nil
	}
	if err := sc.ExpectKeyword("endobj"); err != nil {
		return nil, fmt.Errorf("expected endobj: %w", err)
	}
	obj.end = offset + sc.Offset()
	return obj, nil
}

// resolveLength returns the stream's byte length, following an indirect
// /Length reference through locateObject when necessary (spec §3's
// "entity invariant": a stream's length may itself be an out-of-line
// object, common in documents built incrementally).
func (m *Mutator) resolveLength(obj *Object) (int, error) {
	if n, ok := obj.streamLenVal.Int(); ok {
		return n, nil
	}
	num, gen, ok := obj.streamLenVal.RefNumbers()
	if !ok {
		return 0, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: "/Length is neither an integer nor a reference"}
	}
	lenObj, err := m.locateObject(num, gen, true)
	if err != nil {
		return 0, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: fmt.Sprintf("resolving /Length %d %d R: %v", num, gen, err)}
	}
	n, ok := lenObj.Def.Int()
	if !ok {
		return 0, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: "/Length object is not an integer"}
	}
	return n, nil
}

// rawStreamBytes returns the undecoded, still-encrypted stream bytes for
// obj, fetched fresh from the input each call (objects aren't expected to
// be re-fetched often enough to warrant caching the raw form alongside
// the decoded one FetchStream caches).
func (m *Mutator) rawStreamBytes(obj *Object) ([]byte, error) {
	if !obj.HasStream {
		return nil, nil
	}
	buf, err := m.ts.BranchRead(obj.rawOffset, int(obj.rawLength))
	if err != nil {
		return nil, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: fmt.Sprintf("reading raw stream: %v", err)}
	}
	return append([]byte(nil), buf...), nil
}
