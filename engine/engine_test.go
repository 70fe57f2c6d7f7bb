package engine

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnegard/pdfmutate/pdfval"
	"github.com/arnegard/pdfmutate/xref"
)

// buildFixturePDF assembles a minimal, well-formed single-revision PDF
// with a text-form cross-reference table: a Catalog, a Pages tree with
// one Page, and one free-standing object (4) nothing else references.
func buildFixturePDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make(map[int]int64)
	writeObj := func(num int, body string) {
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	writeObj(4, "42")

	xrefOffset := int64(buf.Len())
	buf.WriteString("xref\n0 5\n")
	buf.Write(xref.WriteTextRow(xref.Entry{Kind: xref.Free, Offset: 0, Generation: 65535}))
	for n := 1; n <= 4; n++ {
		buf.Write(xref.WriteTextRow(xref.Entry{Kind: xref.Used, Offset: offsets[n], Generation: 0}))
	}
	buf.WriteString("trailer\n<< /Size 5 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	return buf.Bytes()
}

func runMutator(t *testing.T, input []byte, cb Callback) []byte {
	t.Helper()
	var out bytes.Buffer
	m, err := NewMutator(bytes.NewReader(input), int64(len(input)), &out, nil)
	require.NoError(t, err)
	require.NoError(t, m.Run(cb))
	return out.Bytes()
}

func TestMutatorPassThroughPreservesObjects(t *testing.T) {
	input := buildFixturePDF(t)
	visited := map[int]bool{}

	output := runMutator(t, input, func(m *Mutator, obj *Object) Action {
		visited[obj.Num] = true
		return Done
	})

	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true}, visited)

	// re-open the written output: the catalog must still resolve, and
	// every object must still be reachable under the same numbers.
	reopened := map[int]bool{}
	m2, err := NewMutator(bytes.NewReader(output), int64(len(output)), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	root, ok := m2.Root()
	require.True(t, ok)
	num, gen, ok := root.RefNumbers()
	require.True(t, ok)
	assert.Equal(t, 1, num)
	assert.Equal(t, 0, gen)

	require.NoError(t, m2.Run(func(m *Mutator, obj *Object) Action {
		reopened[obj.Num] = true
		return Done
	}))
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true}, reopened)
}

func TestMutatorDeleteObjectRemovesItFromOutput(t *testing.T) {
	input := buildFixturePDF(t)

	output := runMutator(t, input, func(m *Mutator, obj *Object) Action {
		if obj.Num == 4 {
			m.DeleteObject(obj)
		}
		return Done
	})

	seen := map[int]bool{}
	m2, err := NewMutator(bytes.NewReader(output), int64(len(output)), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	require.NoError(t, m2.Run(func(m *Mutator, obj *Object) Action {
		seen[obj.Num] = true
		return Done
	}))
	assert.False(t, seen[4], "deleted object must not reappear in a second pass over the output")
	assert.True(t, seen[1] && seen[2] && seen[3])
}

func TestMutatorSetDefinitionRewritesObject(t *testing.T) {
	input := buildFixturePDF(t)

	var sawTitle bool
	output := runMutator(t, input, func(m *Mutator, obj *Object) Action {
		if obj.Num == 1 {
			def := obj.Def.Clone()
			def.DictSet("Custom", pdfval.Name("Marked"))
			obj.SetDefinition(def)
		}
		return Done
	})

	m2, err := NewMutator(bytes.NewReader(output), int64(len(output)), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	require.NoError(t, m2.Run(func(m *Mutator, obj *Object) Action {
		if obj.Num == 1 {
			if v, ok := obj.Def.DictGet("Custom"); ok {
				if n, ok := v.NameString(); ok && n == "Marked" {
					sawTitle = true
				}
			}
		}
		return Done
	}))
	assert.True(t, sawTitle, "edited definition must survive being written out and re-parsed")
}

func TestMutatorCallerAbortSurfacesError(t *testing.T) {
	input := buildFixturePDF(t)
	var out bytes.Buffer
	m, err := NewMutator(bytes.NewReader(input), int64(len(input)), &out, nil)
	require.NoError(t, err)

	err = m.Run(func(m *Mutator, obj *Object) Action {
		return Failure
	})
	var aerr *CallerAbortError
	assert.ErrorAs(t, err, &aerr)
}
