package scanner

import (
	"errors"
	"fmt"
	"io"

	"github.com/arnegard/pdfmutate/classify"
	"github.com/arnegard/pdfmutate/opgraph"
	"github.com/arnegard/pdfmutate/pdfval"
)

// frame is one scanner-push environment (spec §3, "Environment"): a
// reference to the current state, the build stack (entries, accumulating
// composite children) and the var stack (vars, key/value fragments for
// the current composite child). savedStates records the chain of states
// temporarily borrowed by push-weak-state, so pop-state can tell a weak
// pop (restore a saved state on this same frame) from a strong one (pop
// the frame entirely) without needing an explicit argument.
type frame struct {
	state *opgraph.State

	entries    []pdfval.Entry
	vars       map[string]pdfval.Value
	pendingKey *string

	savedStates []*opgraph.State
	marks       []int64
}

var errPopState = errors.New("scanner: pop-state")

func (s *Scanner) top() *frame {
	if len(s.env) == 0 {
		return nil
	}
	return s.env[len(s.env)-1]
}

// enterState implements spec §4.4's execution loop for one pushed
// environment: read a symbol, dispatch it against the (possibly weakly
// substituted) state, run its program, and repeat until a pop-state
// instruction unwinds this push.
func (s *Scanner) enterState(name string, weak bool) error {
	st, ok := s.grammar.registry[name]
	if !ok {
		return fmt.Errorf("scanner: unknown state %q", name)
	}

	frm := s.top()
	if weak {
		if frm == nil {
			return fmt.Errorf("scanner: push-weak-state %q with no parent frame", name)
		}
		frm.savedStates = append(frm.savedStates, frm.state)
		frm.state = st
	} else {
		frm = &frame{state: st, vars: map[string]pdfval.Value{}}
		s.env = append(s.env, frm)
	}

	for {
		sym, err := s.nextRawSymbol()
		if err != nil {
			return err
		}
		s.curSymbol = sym
		if sym.IsAtom {
			s.atom = sym.Atom
		}

		var prog opgraph.Program
		switch {
		case sym.EOF:
			// Running out of input is only tolerable for states that
			// opt in (package scanner's "N G R" lookahead states): a
			// bare top-level number legitimately ends the input, but an
			// unterminated array/dict/string must still fail.
			if frm.state.EOF == nil {
				return io.ErrUnexpectedEOF
			}
			prog = frm.state.EOF
		case sym.IsAtom && sym.Kind != opgraph.SymNumeric:
			// Strings, names, true/false/null are fully parsed at symbol
			// extraction time and never need keyword lookahead: take the
			// shortcut straight to the catch-all program.
			prog = frm.state.CatchAll
		default:
			// Numeric atoms still carry their lexeme in sym.Text, so they
			// must go through Dispatch: the grammar's numeric fallback
			// (e.g. stValue's "N G R" lookahead) only fires this way.
			prog = frm.state.Dispatch(sym.Text, sym.Kind)
		}

		err = s.runProgram(prog)
		if err == errPopState {
			if n := len(frm.savedStates); n > 0 {
				frm.state = frm.savedStates[n-1]
				frm.savedStates = frm.savedStates[:n-1]
			} else {
				s.env = s.env[:len(s.env)-1]
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// runProgram executes one operator program's instructions left to right
// (spec §3 "Operator programs", §4.4 "Execution loop"). push-state
// recurses into enterState synchronously, so instructions following it in
// the same program run only after that sub-environment has fully popped —
// giving the grammar ordinary recursive-descent call semantics while still
// routing every control-flow decision through the compiled state graph.
func (s *Scanner) runProgram(p opgraph.Program) error {
	for _, instr := range p {
		switch instr.Kind {
		case opgraph.PushState:
			if err := s.enterState(instr.State, false); err != nil {
				return err
			}
		case opgraph.PushWeakState:
			if err := s.enterState(instr.State, true); err != nil {
				return err
			}
		case opgraph.PopState:
			return errPopState

		case opgraph.PushResult:
			s.result = append(s.result, s.atom)
		case opgraph.PushEmpty:
			s.atom = pdfval.Null
		case opgraph.PushMarked, opgraph.Mark:
			if top := s.top(); top != nil {
				top.marks = append(top.marks, s.src.Offset())
			}
		case opgraph.PushbackSymbol:
			s.pushedSymbols = append(s.pushedSymbols, s.curSymbol)
		case opgraph.PushbackValue:
			s.pushedSymbols = append(s.pushedSymbols, Symbol{IsAtom: true, Atom: s.atom})

		case opgraph.PopVariable:
			top := s.top()
			if top == nil {
				return fmt.Errorf("scanner: pop-variable %q with no frame", instr.Key)
			}
			if top.vars == nil {
				top.vars = map[string]pdfval.Value{}
			}
			top.vars[instr.Key] = s.atom
			if instr.Key == "key" {
				if name, ok := s.atom.NameString(); ok {
					top.pendingKey = &name
				}
			}
		case opgraph.PopValue:
			top := s.top()
			if top == nil {
				return errors.New("scanner: pop-value with no frame")
			}
			key := ""
			if top.pendingKey != nil {
				key = *top.pendingKey
				top.pendingKey = nil
			}
			top.entries = append(top.entries, pdfval.Entry{Key: key, Value: s.atom})
		case opgraph.PullBuildVariable:
			top := s.top()
			if top == nil {
				return fmt.Errorf("scanner: pull-build-variable %q with no frame", instr.Key)
			}
			s.atom = top.vars[instr.Key]

		case opgraph.StoveComplex:
			top := s.top()
			if top == nil {
				return errors.New("scanner: stove-complex with no frame")
			}
			s.atom = pdfval.Composite(tagFor(instr.Tag), top.entries...)
			top.entries = nil
		case opgraph.PushComplex:
			top := s.top()
			if top == nil {
				return errors.New("scanner: push-complex with no frame")
			}
			s.atom = pdfval.Composite(tagFor(instr.Tag), top.entries...)
			top.entries = nil
			s.result = append(s.result, s.atom)

		case opgraph.ReadToDelimiter:
			s.readToDelimiter()
		case opgraph.PopLine:
			s.consumeLine()
		case opgraph.Nop:
			// deliberate no-op.
		default:
			return fmt.Errorf("scanner: unhandled instruction kind %v", instr.Kind)
		}
	}
	return nil
}

func tagFor(name string) pdfval.Tag {
	switch name {
	case "array":
		return pdfval.TagArray
	case "dict":
		return pdfval.TagDict
	case "ref":
		return pdfval.TagRef
	default:
		return pdfval.TagObject
	}
}

// readToDelimiter implements the read-to-delimiter instruction: capture
// raw bytes up to the next whitespace or delimiter as an Identifier atom,
// the scanner's recovery path for a token shape the grammar doesn't
// otherwise recognize (spec §3's "Identifier(interned-symbol)").
func (s *Scanner) readToDelimiter() {
	var out []byte
	for {
		if err := s.src.Grow(1); err != nil {
			break
		}
		b := s.src.Bytes(1)[0]
		if classify.IsWhitespace(b) || classify.IsDelimiter(b) {
			break
		}
		out = append(out, b)
		s.src.Advance(1)
	}
	s.atom = pdfval.Identifier(string(out))
}
