package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/arnegard/pdfmutate/filters"
	"github.com/arnegard/pdfmutate/pdfval"
)

// FetchStream returns obj's decoded stream content: ciphertext decrypted
// with the document's crypt handler (a no-op absent /Encrypt), then run
// through its /Filter chain (spec §4.5.2's stream-extraction path). The
// result is cached on obj so repeated calls (e.g. locateCompressedMember
// re-decoding a shared container) don't redo the work.
func (m *Mutator) FetchStream(obj *Object) ([]byte, error) {
	if obj.extractedLen >= 0 {
		return obj.streamBuf[:obj.extractedLen], nil
	}
	if !obj.HasStream {
		return nil, nil
	}

	raw, err := m.decryptedRaw(obj)
	if err != nil {
		return nil, err
	}

	resolve := func(v pdfval.Value) (pdfval.Value, error) {
		num, gen, ok := v.RefNumbers()
		if !ok {
			return v, nil
		}
		ref, err := m.locateObject(num, gen, true)
		if err != nil {
			return pdfval.Null, err
		}
		return ref.Def, nil
	}

	chain, err := filters.ParseChain(dictOrNull(obj.Def, "Filter"), dictOrNull(obj.Def, "DecodeParms"), resolve)
	if err != nil {
		return nil, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: err.Error()}
	}

	decoded := raw
	if len(chain) > 0 {
		r, err := chain.DecodeReader(bytes.NewReader(raw))
		if err != nil {
			var unsupported filters.UnsupportedError
			if errors.As(err, &unsupported) {
				return nil, &UnsupportedFeatureError{Detail: err.Error()}
			}
			return nil, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: fmt.Sprintf("decoding stream: %v", err)}
		}
		decoded, err = io.ReadAll(r)
		if err != nil {
			return nil, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: fmt.Sprintf("decoding stream: %v", err)}
		}
	}

	obj.streamBuf = decoded
	obj.extractedLen = len(decoded)
	return decoded, nil
}

// decryptedRaw returns obj's stream bytes after decryption but before
// filter decoding, caching the result: this is the form written back
// out verbatim when a callback edits only the object's definition and
// leaves the stream itself alone, since re-encoding the stream is never
// necessary in that case.
func (m *Mutator) decryptedRaw(obj *Object) ([]byte, error) {
	if obj.rawDecrypted != nil {
		return obj.rawDecrypted, nil
	}
	raw, err := m.rawStreamBytes(obj)
	if err != nil {
		return nil, err
	}
	raw, err = m.crypt.Decrypt(obj.Num, obj.Gen, raw)
	if err != nil {
		return nil, &CorruptObjectError{Num: obj.Num, Gen: obj.Gen, Detail: fmt.Sprintf("decrypting stream: %v", err)}
	}
	obj.rawDecrypted = raw
	return raw, nil
}

// SetStream replaces obj's stream content. When preEncoded is false, the
// bytes are taken as the decoded form and obj's existing /Filter chain
// (if any) is dropped from the serialized definition, since re-applying
// the original encoding is out of scope (spec.md's non-goal on
// re-compressing rewritten streams): the stream is written out raw. When
// preEncoded is true, data is written verbatim and the existing /Filter
// entry is left as-is, for a caller that already encoded the replacement
// itself.
func (m *Mutator) SetStream(obj *Object, data []byte, preEncoded bool) {
	obj.overrideStreamBytes = data
	obj.overrideStreamPreEncoded = preEncoded
	obj.OverrideStream = true
	obj.mutated = true
	if !preEncoded {
		obj.Def.DictDelete("Filter")
		obj.Def.DictDelete("DecodeParms")
	}
}

// DeleteObject marks obj for removal: passthrough-object frees its
// cross-reference slot instead of writing it, per spec §4.5.4.
func (m *Mutator) DeleteObject(obj *Object) {
	obj.DeleteObject = true
	obj.mutated = true
}

// CreateObjectNow allocates a fresh object number (reusing a freed slot
// when the free-slot chain has one, spec §4.5.4) and queues def to be
// written immediately after the object currently being processed,
// preserving forward-pass ordering.
func (m *Mutator) CreateObjectNow(def pdfval.Value) *Object {
	num := m.master.AllocFreeSlot()
	obj := newObject(num, 0, ClassRegular, def, -1)
	obj.mutated = true
	m.pendingNow = append(m.pendingNow, obj)
	return obj
}

// CreateObjectAppended allocates a fresh object number and queues def to
// be written after every other object, just before the new master XREF
// (spec §4.5.4's "create-object-appended").
func (m *Mutator) CreateObjectAppended(def pdfval.Value) *Object {
	num := m.master.AllocFreeSlot()
	obj := newObject(num, 0, ClassRegular, def, -1)
	obj.mutated = true
	m.pendingAppend = append(m.pendingAppend, obj)
	return obj
}

// serializeObject renders obj's "N G obj ... endobj" envelope from its
// (possibly edited) definition and stream, used whenever Mutated()
// prevents a verbatim byte copy.
func serializeObject(obj *Object) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d obj\n", obj.Num, obj.Gen)

	def := obj.Def.Clone()
	var streamBytes []byte
	hasStream := obj.HasStream && !obj.SkipStream
	switch {
	case obj.OverrideStream:
		// Either a pre-encoded replacement (original /Filter kept by
		// SetStream) or a decoded one (SetStream already stripped
		// /Filter/DecodeParms from def), so the bytes here always match
		// whatever filter chain def now declares.
		streamBytes = obj.overrideStreamBytes
		hasStream = true
	case hasStream:
		// Untouched stream: rewrite the envelope (the definition itself
		// was edited) but keep the original encoded bytes so the
		// existing /Filter chain still applies unchanged.
		streamBytes = obj.rawDecrypted
	}
	if hasStream {
		def.DictSet("Length", pdfval.Number(fmt.Sprintf("%d", len(streamBytes))))
	}
	def.Write(&b)
	b.WriteByte('\n')

	if hasStream {
		b.WriteString("stream\n")
		b.Write(streamBytes)
		b.WriteString("\nendstream\n")
	}
	b.WriteString("endobj\n")
	return []byte(b.String())
}
