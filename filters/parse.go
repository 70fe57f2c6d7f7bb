package filters

import (
	"fmt"

	"github.com/arnegard/pdfmutate/pdfval"
)

// Resolver resolves an indirect reference to its value; filter parameters
// are required to be direct objects by the PDF spec, but defensively
// resolving them matches the teacher's reader/file/xreftable.go, which
// always routes dictionary values through ctx.resolve before use.
type Resolver func(pdfval.Value) (pdfval.Value, error)

// ParseChain builds a Chain from a stream dictionary's /Filter and
// /DecodeParms entries, which may each be a bare value or an array of
// values (one per chained filter).
func ParseChain(filterVal, parmsVal pdfval.Value, resolve Resolver) (Chain, error) {
	filterVal, err := resolve(filterVal)
	if err != nil {
		return nil, err
	}
	if filterVal.IsNull() {
		return nil, nil
	}

	var names []string
	if arr, ok := filterVal.Array(); ok {
		for _, v := range arr {
			v, err := resolve(v)
			if err != nil {
				return nil, err
			}
			n, ok := v.NameString()
			if !ok {
				return nil, fmt.Errorf("filters: /Filter array entry is not a name: %v", v)
			}
			names = append(names, n)
		}
	} else if n, ok := filterVal.NameString(); ok {
		names = []string{n}
	} else {
		return nil, fmt.Errorf("filters: /Filter is neither a name nor an array: %v", filterVal)
	}

	var parmsList []pdfval.Value
	parmsVal, err = resolve(parmsVal)
	if err != nil {
		return nil, err
	}
	if arr, ok := parmsVal.Array(); ok {
		parmsList = arr
	} else if !parmsVal.IsNull() {
		parmsList = []pdfval.Value{parmsVal}
	}

	out := make(Chain, len(names))
	for i, n := range names {
		f := Filter{Name: Name(n), Parms: map[string]int{}}
		if i < len(parmsList) {
			parms, err := resolve(parmsList[i])
			if err != nil {
				return nil, err
			}
			for _, key := range parms.DictKeys() {
				v, _ := parms.DictGet(key)
				v, err := resolve(v)
				if err != nil {
					return nil, err
				}
				if iv, ok := v.Int(); ok {
					f.Parms[key] = iv
				} else if b, ok := v.NameString(); ok && (b == "true" || b == "false") {
					if b == "true" {
						f.Parms[key] = 1
					}
				}
			}
			f.Colors = f.Parms["Colors"]
			f.BPC = f.Parms["BitsPerComponent"]
		}
		out[i] = f
	}
	return out, nil
}
