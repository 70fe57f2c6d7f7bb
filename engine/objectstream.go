package engine

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/arnegard/pdfmutate/pdfval"
	"github.com/arnegard/pdfmutate/scanner"
)

// locateCompressedMember resolves an object recorded as Compressed in the
// cross-reference table: decode the owning /Type /ObjStm container once
// (cached by container number), then parse just that member's slice of
// the decoded content. Grounded on the teacher's processObjectStream,
// adapted from its whole-document byte-slice model to this package's
// lazy, per-object Object records.
func (m *Mutator) locateCompressedMember(num, container, member int) (*Object, error) {
	members, err := m.decodeObjectStream(container)
	if err != nil {
		return nil, &CorruptObjectError{Num: num, Detail: fmt.Sprintf("object stream %d: %v", container, err)}
	}
	if member < 0 || member >= len(members) {
		return nil, &CorruptObjectError{Num: num, Detail: fmt.Sprintf("object stream %d has no member %d", container, member)}
	}
	slot := members[member]
	if slot.num != num {
		return nil, &CorruptObjectError{Num: num, Detail: fmt.Sprintf("object stream slot %d holds object %d, not %d", member, slot.num, num)}
	}
	return newObject(num, 0, ClassCompressedMember, slot.def, -1), nil
}

// streamMember is one decoded object-stream slot: its declared object
// number and parsed value (compressed objects carry no stream body and
// no generation other than 0, per ISO 32000-1 7.5.7).
type streamMember struct {
	num int
	def pdfval.Value
}

// decodeObjectStream parses and caches the member objects of container,
// an indirect /Type /ObjStm object (spec §4.5.2's compressed-object
// path).
func (m *Mutator) decodeObjectStream(container int) ([]streamMember, error) {
	if members, ok := m.streamCache[container]; ok {
		return members, nil
	}

	obj, err := m.locateObject(container, 0, true)
	if err != nil {
		return nil, err
	}
	if !obj.HasStream {
		return nil, fmt.Errorf("object %d has no stream", container)
	}

	decoded, err := m.FetchStream(obj)
	if err != nil {
		return nil, err
	}

	firstVal, ok := obj.Def.DictGet("First")
	if !ok {
		return nil, fmt.Errorf("missing /First")
	}
	first, ok := firstVal.Int()
	if !ok {
		return nil, fmt.Errorf("/First is not an integer")
	}
	if first > len(decoded) {
		return nil, fmt.Errorf("/First %d exceeds decoded stream length %d", first, len(decoded))
	}

	// The prolog's separator is whitespace, but some writers use a NUL
	// byte instead (teacher's object_streams.go notes the same
	// tolerance).
	prolog := bytes.ReplaceAll(decoded[:first], []byte{0}, []byte{' '})
	fields := bytes.Fields(prolog)
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("odd number of fields in object stream prolog")
	}

	n := len(fields) / 2
	nums := make([]int, n)
	offsets := make([]int, n)
	for i := 0; i < n; i++ {
		num, err := strconv.Atoi(string(fields[2*i]))
		if err != nil {
			return nil, fmt.Errorf("invalid object number in object stream prolog: %v", fields[2*i])
		}
		off, err := strconv.Atoi(string(fields[2*i+1]))
		if err != nil {
			return nil, fmt.Errorf("invalid offset in object stream prolog: %v", fields[2*i+1])
		}
		nums[i] = num
		offsets[i] = first + off
		if offsets[i] > len(decoded) {
			return nil, fmt.Errorf("object stream offset %d exceeds decoded length", offsets[i])
		}
	}

	members := make([]streamMember, n)
	for i := 0; i < n; i++ {
		start := offsets[i]
		end := len(decoded)
		if i+1 < n {
			end = offsets[i+1]
		}
		sc := scanner.NewFromBytes(decoded[start:end])
		val, err := sc.ParseValue()
		if err != nil {
			return nil, fmt.Errorf("parsing object stream member %d (object %d): %w", i, nums[i], err)
		}
		members[i] = streamMember{num: nums[i], def: val}
	}

	m.streamCache[container] = members
	return members, nil
}
