// Package opgraph implements the compiled operator/state graph described in
// spec §4.2: a finite-state grammar where each state carries a perfect-hash
// keyword table and three fallback operator programs (numeric, delimiter,
// catch-all). The graph for the PDF grammar itself lives in package scanner,
// which is the only thing that knows what a "dictionary" or "indirect
// reference" is; this package only knows about states, keywords and
// instruction chains.
package opgraph

import "fmt"

// InstrKind enumerates the primitive instructions an operator program is
// built from (spec §3, "Operator programs").
type InstrKind uint8

const (
	PushState InstrKind = iota
	PushWeakState
	PopState

	PushResult
	PushEmpty
	PushMarked
	PushbackSymbol
	PushbackValue

	PopVariable
	PopValue
	PullBuildVariable

	StoveComplex
	PushComplex

	ReadToDelimiter
	PopLine
	Mark
	Nop
)

// Instr is a single primitive instruction in an operator program.
// Only the fields relevant to Kind are populated.
type Instr struct {
	Kind InstrKind

	// State is the target of PushState/PushWeakState, resolved lazily by
	// name so states can refer to each other before both are built.
	State string

	// Key is used by PopVariable and PullBuildVariable.
	Key string

	// Tag is used by StoveComplex and PushComplex (e.g. "dict", "array").
	Tag string
}

// Program is an ordered chain of instructions, executed left-to-right by
// the scanner's execution loop when a symbol matches.
type Program []Instr

// P is a small constructor helper so grammar definitions in package scanner
// read as a flat instruction list instead of a wall of struct literals.
func P(instrs ...Instr) Program { return Program(instrs) }

func I(kind InstrKind) Instr                 { return Instr{Kind: kind} }
func IState(kind InstrKind, name string) Instr { return Instr{Kind: kind, State: name} }
func IKey(kind InstrKind, key string) Instr    { return Instr{Kind: kind, Key: key} }
func ITag(kind InstrKind, tag string) Instr    { return Instr{Kind: kind, Tag: tag} }

// keywordEntry is one slot of the open-addressed hash table.
type keywordEntry struct {
	occupied bool
	keyword  string
	program  Program
}

// State is a named set of recognized keywords with an attached operator
// program for each, plus the three fallback programs. Building a state is
// cheap and repeatable; Compile() freezes it.
type State struct {
	Name string

	keywords map[string]Program
	table    []keywordEntry
	mask     int // len(table)-1, table is always a power of two

	Numeric   Program
	Delimiter Program
	CatchAll  Program

	// EOF is the program run when the scanner runs out of input while
	// this state is current. Left nil (the default for every state
	// except the backtrackable lookahead states in package scanner's
	// grammar), running out of input is an error: an array, dictionary
	// or string that never closes before end-of-file is malformed, not
	// a legitimate stopping point.
	EOF Program

	compiled bool
}

// NewState creates an (uncompiled) state.
func NewState(name string) *State {
	return &State{Name: name, keywords: map[string]Program{}}
}

// On binds a keyword to a program. Must be called before Compile.
func (s *State) On(keyword string, p Program) *State {
	if s.compiled {
		panic("opgraph: On called on a compiled state")
	}
	s.keywords[keyword] = p
	return s
}

// OnNumeric/OnDelimiter/OnCatchAll set the three fallback programs.
func (s *State) OnNumeric(p Program) *State   { s.Numeric = p; return s }
func (s *State) OnDelimiter(p Program) *State { s.Delimiter = p; return s }
func (s *State) OnCatchAll(p Program) *State  { s.CatchAll = p; return s }

// OnEOF sets the program run when input runs out while this state is
// current, opting this state into tolerating end-of-file instead of
// failing the scan.
func (s *State) OnEOF(p Program) *State { s.EOF = p; return s }

// hashOf implements the minimal-collision hash from spec §3:
// ((sum - (class-1)*c) mod m) * 10 + len(sym)
// c is the number of distinct classes (fixed at 4, matching package
// classify's Class enumeration); class is approximated here by the
// keyword's first byte bucket, which is all the compiled table needs since
// collisions are resolved by linear probing against the literal keyword.
func hashOf(sym string, m int) int {
	sum := 0
	for i := 0; i < len(sym); i++ {
		sum += int(sym[i])
	}
	const c = 4
	class := int(sym[0]) % c
	h := (sum - (class-1)*c) % m
	if h < 0 {
		h += m
	}
	return (h*10 + len(sym)) % m
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p == 0 {
		p = 1
	}
	return p
}

// Compile builds the perfect-hash-ish index for this state and recursively
// compiles every state reachable through PushState/PushWeakState
// instructions found in its programs (including the fallbacks). Compiling
// an already-compiled state is a no-op, so cycles (a grammar referencing
// itself) terminate.
func (s *State) Compile(registry map[string]*State) error {
	if s.compiled {
		return nil
	}
	s.compiled = true // mark first: guards against infinite recursion on cycles

	size := nextPow2(len(s.keywords))
	if size == 0 {
		size = 1
	}
	// grow until every keyword finds a free slot within a bounded number
	// of probes; in practice one growth step suffices for realistic
	// grammars (a handful of keywords per state).
	for {
		table := make([]keywordEntry, size)
		ok := true
		for kw, prog := range s.keywords {
			h := hashOf(kw, size) & (size - 1)
			placed := false
			for probe := 0; probe < size; probe++ {
				idx := (h + probe) & (size - 1)
				if !table[idx].occupied {
					table[idx] = keywordEntry{occupied: true, keyword: kw, program: prog}
					placed = true
					break
				}
			}
			if !placed {
				ok = false
				break
			}
		}
		if ok {
			s.table = table
			s.mask = size - 1
			break
		}
		size <<= 1
	}

	for _, p := range s.allPrograms() {
		for _, instr := range p {
			switch instr.Kind {
			case PushState, PushWeakState:
				sub, ok := registry[instr.State]
				if !ok {
					return fmt.Errorf("opgraph: state %q references unknown state %q", s.Name, instr.State)
				}
				if err := sub.Compile(registry); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *State) allPrograms() []Program {
	out := make([]Program, 0, len(s.keywords)+4)
	for _, p := range s.keywords {
		out = append(out, p)
	}
	return append(out, s.Numeric, s.Delimiter, s.CatchAll, s.EOF)
}

// SymbolKind tells Dispatch what classify.ClassifySymbol already determined
// about the incoming symbol, so it can pick the right fallback without
// re-deriving it.
type SymbolKind uint8

const (
	SymRegular SymbolKind = iota
	SymNumeric
	SymDelimiter
)

// Dispatch implements spec §4.2's dispatch contract: walk hash entries from
// h mod m forward while the slot is occupied and its keyword doesn't match
// the symbol text; fall back to Numeric/Delimiter/CatchAll in that order.
func (s *State) Dispatch(symbol string, kind SymbolKind) Program {
	if !s.compiled {
		panic("opgraph: Dispatch called on an uncompiled state")
	}
	if len(s.table) > 0 {
		h := hashOf(symbol, len(s.table)) & s.mask
		for probe := 0; probe <= s.mask; probe++ {
			idx := (h + probe) & s.mask
			e := s.table[idx]
			if !e.occupied {
				break
			}
			if e.keyword == symbol {
				return e.program
			}
		}
	}
	switch kind {
	case SymNumeric:
		return s.Numeric
	case SymDelimiter:
		return s.Delimiter
	default:
		return s.CatchAll
	}
}
