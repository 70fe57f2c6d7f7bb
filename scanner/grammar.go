package scanner

import (
	"sync"

	"github.com/arnegard/pdfmutate/opgraph"
)

// Grammar is the compiled PDF value grammar (spec §4.2's "interlinked set
// of states" for numbers, strings, names, arrays, dictionaries and
// indirect references). It is process-wide and built once, matching spec
// §5's "classifier tables and compiled state graph are process-wide,
// initialized under a one-shot guard, and read-only after initialization".
type Grammar struct {
	registry map[string]*opgraph.State
	value    *opgraph.State
}

var (
	grammarOnce sync.Once
	grammar     *Grammar
)

// PDFGrammar returns the compiled value grammar, building it on first use.
func PDFGrammar() *Grammar {
	grammarOnce.Do(func() { grammar = buildGrammar() })
	return grammar
}

const (
	stValue     = "value"
	stArray     = "array"
	stDict      = "dict"
	stAfterNum1 = "afterNum1"
	stAfterNum2 = "afterNum2"
)

// buildGrammar wires the states described in spec §4.3's Design Notes and
// §4.2's dispatch contract for the recursive, nestable part of the PDF
// grammar (numbers, strings, names, arrays, dictionaries, indirect
// references). Literal/hex strings and names never reach dispatch (they
// are fully parsed by symbol extraction, §4.4), so they only need a
// catch-all passthrough here.
//
// Object headers, streams, xref sections, the trailer keyword and
// startxref are *not* part of this graph: spec §4.5.1 assigns XREF
// discovery and object-envelope recognition to the parser (C5), which in
// this module is package engine built on top of Scanner's linear,
// non-recursive token primitives (ParseObjectHeader et al.) rather than
// on a pushed opgraph state — mirroring the teacher's own split between
// parser/tokenizer (generic token stream) and reader/parser (the
// hand-written object-envelope loop that consumes it).
func buildGrammar() *Grammar {
	reg := map[string]*opgraph.State{}

	value := opgraph.NewState(stValue)
	array := opgraph.NewState(stArray)
	dict := opgraph.NewState(stDict)
	afterNum1 := opgraph.NewState(stAfterNum1)
	afterNum2 := opgraph.NewState(stAfterNum2)

	reg[stValue] = value
	reg[stArray] = array
	reg[stDict] = dict
	reg[stAfterNum1] = afterNum1
	reg[stAfterNum2] = afterNum2

	// --- stValue: parse exactly one value, leave it as the pending atom,
	// then pop back to whichever state pushed us. ---
	value.
		On("[", opgraph.P(opgraph.IState(opgraph.PushState, stArray), opgraph.I(opgraph.PopState))).
		On("<<", opgraph.P(opgraph.IState(opgraph.PushState, stDict), opgraph.I(opgraph.PopState))).
		OnNumeric(opgraph.P(
			opgraph.IKey(opgraph.PopVariable, "num"),
			opgraph.IState(opgraph.PushWeakState, stAfterNum1),
			opgraph.I(opgraph.PopState),
		)).
		// Strings, names, true/false/null and unrecognized regular tokens
		// already have their atom set by symbol extraction; nothing to do
		// but return it to the caller.
		OnCatchAll(opgraph.P(opgraph.I(opgraph.PopState))).
		// A stray, unbound delimiter (")" ">" "}" etc.) is malformed input;
		// mark the offset and capture the raw run so the caller gets a
		// diagnosable value instead of the scanner wedging.
		OnDelimiter(opgraph.P(opgraph.I(opgraph.Mark), opgraph.I(opgraph.ReadToDelimiter), opgraph.I(opgraph.PopState)))

	// --- stArray: collect elements until "]"; every other token is
	// pushed back and delegated to a fresh stValue push. ---
	delegate := opgraph.P(
		opgraph.I(opgraph.PushbackSymbol),
		opgraph.IState(opgraph.PushState, stValue),
		opgraph.I(opgraph.PopValue),
	)
	array.
		On("]", opgraph.P(opgraph.ITag(opgraph.StoveComplex, "array"), opgraph.I(opgraph.PopState))).
		OnNumeric(delegate).
		OnDelimiter(delegate).
		OnCatchAll(delegate)

	// --- stDict: alternate name keys and values until ">>". A key atom
	// is already fully consumed by the time it reaches dispatch, so
	// (unlike stArray) it is captured directly rather than pushed back. ---
	captureKeyThenValue := opgraph.P(
		opgraph.IKey(opgraph.PopVariable, "key"),
		opgraph.IState(opgraph.PushState, stValue),
		opgraph.I(opgraph.PopValue),
	)
	dict.
		On(">>", opgraph.P(opgraph.ITag(opgraph.StoveComplex, "dict"), opgraph.I(opgraph.PopState))).
		OnNumeric(captureKeyThenValue).
		OnDelimiter(captureKeyThenValue).
		OnCatchAll(captureKeyThenValue)

	// --- stAfterNum1 / stAfterNum2: the "N G R" lookahead. Both are
	// entered via push-weak-state, so they share stValue's frame (its var
	// and build stacks) rather than getting their own — spec §3's
	// "environment" is scoped per push, and a weak push is exactly the
	// cheap, backtrackable re-use of the parent's scope that makes this
	// lookahead affordable. ---
	afterNum1.
		OnNumeric(opgraph.P(
			opgraph.IKey(opgraph.PopVariable, "gen"),
			opgraph.IState(opgraph.PushWeakState, stAfterNum2),
			opgraph.I(opgraph.PopState),
		))
	// notARef1 backtracks the two-token lookahead ("num" followed by a
	// non-numeric token): only "num" was ever buffered, so pushing back
	// the current token and returning "num" loses nothing. OnEOF reuses
	// the same program (pushing back the EOF marker itself) so a bare
	// trailing number ("123" with nothing after it) still resolves
	// instead of failing the scan, while an enclosing array/dict that
	// still expects a closing delimiter sees that same EOF marker on its
	// own next read and fails as it should.
	notARef1 := opgraph.P(
		opgraph.I(opgraph.PushbackSymbol),
		opgraph.IKey(opgraph.PullBuildVariable, "num"),
		opgraph.I(opgraph.PopState),
	)
	afterNum1.OnDelimiter(notARef1).OnCatchAll(notARef1).OnEOF(notARef1)

	afterNum2.On("R", opgraph.P(
		opgraph.IKey(opgraph.PullBuildVariable, "num"),
		opgraph.I(opgraph.PopValue),
		opgraph.IKey(opgraph.PullBuildVariable, "gen"),
		opgraph.I(opgraph.PopValue),
		opgraph.ITag(opgraph.StoveComplex, "ref"),
		opgraph.I(opgraph.PopState),
	))
	// notARef2 backtracks the three-token lookahead: this time BOTH
	// "num" and "gen" are buffered, and both must come back as distinct
	// values, not just "num". The current (third) token is pushed back
	// first, then "gen" is re-queued as a synthetic already-resolved
	// atom symbol (ahead of it, since pushback is LIFO) so the caller's
	// next two reads yield "gen" and then the original third token in
	// their original order; "num" alone is what this lookahead frame
	// itself resolves to. "gen", once requeued this way, does not get
	// its own ref lookahead re-attempted (it already lost the race to be
	// "num" for this window) - the token after it does, normally.
	notARef2 := opgraph.P(
		opgraph.I(opgraph.PushbackSymbol),
		opgraph.IKey(opgraph.PullBuildVariable, "gen"),
		opgraph.I(opgraph.PushbackValue),
		opgraph.IKey(opgraph.PullBuildVariable, "num"),
		opgraph.I(opgraph.PopState),
	)
	afterNum2.OnNumeric(notARef2).OnDelimiter(notARef2).OnCatchAll(notARef2).OnEOF(notARef2)

	for _, st := range reg {
		if err := st.Compile(reg); err != nil {
			panic("scanner: grammar failed to compile: " + err.Error())
		}
	}

	return &Grammar{registry: reg, value: value}
}
