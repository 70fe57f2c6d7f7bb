package engine

// detectLinearized checks whether obj is the linearization parameter
// dictionary (ISO 32000-1 Annex F): the very first object in a
// linearized file's body carries a /Linearized key, not any trailer.
//
// Linearization's own hint tables and the first-page xref it inserts
// mid-document are not reconstructed: spec's Open Question on
// linearized input resolves to "ignore XREF records past the cursor and
// do not attempt to repair them" - the discard-span discovery already
// keeps the engine from tripping over that mid-file xref section
// (§4.5.1's chain walk only follows /Prev from the final trailer), so
// detectLinearized is purely informational, surfaced to the caller
// through Linearized rather than altering control flow.
func (m *Mutator) detectLinearized(obj *Object) {
	if _, ok := obj.Def.DictGet("Linearized"); ok {
		m.linearized = true
		m.log.Printf("engine: input is linearized; linearization hints will not be preserved")
	}
}

// Linearized reports whether the input declared itself linearized (ISO
// 32000-1 Annex F). The output is never re-linearized.
func (m *Mutator) Linearized() bool { return m.linearized }
