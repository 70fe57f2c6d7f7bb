package engine

import "github.com/arnegard/pdfmutate/pdfval"

// Class discriminates the three object categories spec §3's "object
// record" names.
type Class uint8

const (
	ClassRegular Class = iota
	ClassCompressedMember
	ClassTrailer
)

// Object is the parser-level object record (spec §3): object id and
// generation, decoded definition tree, stream bookkeeping, and the
// mutation flags a callback sets to steer passthrough-object (spec
// §4.5.3-§4.5.4). It is constructed lazily on first reference and
// retained in the Mutator's object cache for the rest of the pass.
type Object struct {
	Num, Gen int
	Class    Class

	// Type is the value of /Type when Def is a dict, or "" otherwise;
	// cached at construction so the engine can recognize a /Type /XRef
	// stream object without a DictGet on every lookup.
	Type string

	// Def is the decoded definition tree: everything between "N G obj"
	// and the "stream"/"endobj" keyword.
	Def pdfval.Value

	HasStream    bool
	streamLenVal pdfval.Value // the /Length entry, possibly an indirect ref
	rawOffset    int64        // input offset of the raw (encoded) stream bytes
	rawLength    int64        // -1 until resolved; resolved /Length value

	// extractedLen is -1 until FetchStream has decoded the stream once;
	// once extracted both it and streamBuf are set together (spec §3
	// entity invariant).
	extractedLen int
	streamBuf    []byte

	// rawDecrypted caches the stream's decrypted-but-still-filtered bytes
	// (spec §4.5.2): the form written back out verbatim when a callback
	// edits the definition but leaves the stream itself untouched, so the
	// original /Filter chain need not be re-applied.
	rawDecrypted []byte

	SkipObject         bool
	SkipStream         bool
	DeleteObject       bool
	OverrideStream     bool
	OverrideDefinition bool

	overrideStreamBytes     []byte
	overrideStreamPreEncoded bool

	// mutated is set whenever a caller-visible mutation happened, so
	// passthrough-object (spec §4.5.3) knows whether it may still
	// byte-copy the original envelope or must serialize a new one.
	mutated bool

	// envelope bookkeeping filled in by the iterate loop: the input span
	// [headerStart, end) of this object's original "N G obj ... endobj"
	// bytes, used for the verbatim byte-copy fast path.
	headerStart, end int64
}

func newObject(num, gen int, class Class, def pdfval.Value, headerStart int64) *Object {
	o := &Object{
		Num: num, Gen: gen, Class: class, Def: def,
		extractedLen: -1, rawLength: -1,
		headerStart: headerStart,
	}
	if t, ok := def.DictGet("Type"); ok {
		if n, ok := t.NameString(); ok {
			o.Type = n
		}
	}
	if l, ok := def.DictGet("Length"); ok {
		o.streamLenVal = l
		o.HasStream = true
	}
	return o
}

// Mutated reports whether passthrough-object must serialize this object
// rather than byte-copy its original envelope.
func (o *Object) Mutated() bool {
	return o.mutated || o.DeleteObject || o.OverrideStream || o.OverrideDefinition || o.SkipStream
}

// SetDefinition replaces the decoded definition tree (e.g. a dict field
// edit), marking the object for rewrite. The new tree's /Length, if any,
// is ignored for stream length accounting: use SetStream to change the
// stream itself.
func (o *Object) SetDefinition(v pdfval.Value) {
	o.Def = v
	o.OverrideDefinition = true
	o.mutated = true
}

// Ref returns the pdfval.Value encoding an indirect reference to o.
func (o *Object) Ref() pdfval.Value { return pdfval.Ref(o.Num, o.Gen) }
