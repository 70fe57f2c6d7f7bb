package engine

import (
	"fmt"

	"github.com/arnegard/pdfmutate/crypt"
	"github.com/arnegard/pdfmutate/pdfval"
)

// setupEncryption reads /Encrypt from the trailer, if present, and
// authenticates cfg.Password against it (first as a user password, then
// as an owner password, per spec §6), installing the resulting
// crypt.Handler on the mutator. A document with no /Encrypt leaves
// m.crypt nil, and Decrypt becomes a no-op throughout.
//
// /Encrypt's own dictionary is always stored unencrypted (ISO 32000-1
// 7.6.1). It is fetched through locateObject like any other object,
// before m.crypt is installed, so it is read as stored.
func (m *Mutator) setupEncryption() error {
	encRef, ok := m.trailer.DictGet("Encrypt")
	if !ok {
		return nil
	}

	var encDict pdfval.Value
	if num, gen, ok := encRef.RefNumbers(); ok {
		obj, err := m.locateObject(num, gen, true)
		if err != nil {
			return &CorruptXRefError{Detail: fmt.Sprintf("/Encrypt %d %d R: %v", num, gen, err)}
		}
		encDict = obj.Def
	} else {
		encDict = encRef
	}

	filter, _ := dictName(encDict, "Filter")
	if filter != "" && filter != "Standard" {
		return &UnsupportedFeatureError{Detail: fmt.Sprintf("security handler %q", filter)}
	}

	v, _ := dictOrNull(encDict, "V").Int()
	r, _ := dictOrNull(encDict, "R").Int()

	idArr, _ := m.trailer.DictGet("ID")
	id := firstIDBytes(idArr)

	var handler *crypt.Handler
	var err error
	switch {
	case r >= 5:
		handler, err = m.authenticateR6(encDict)
	case v <= 4:
		handler, err = m.authenticateR4(encDict, r, id)
	default:
		return &UnsupportedFeatureError{Detail: fmt.Sprintf("encryption /V %d", v)}
	}
	if err != nil {
		return err
	}
	m.crypt = handler
	return nil
}

func (m *Mutator) authenticateR4(dict pdfval.Value, r int, id []byte) (*crypt.Handler, error) {
	o, ok1 := dictStringBytes(dict, "O")
	u, ok2 := dictStringBytes(dict, "U")
	if !ok1 || !ok2 {
		return nil, &CorruptXRefError{Detail: "/Encrypt missing /O or /U"}
	}
	length, _ := dictOrNull(dict, "Length").Int()
	if length == 0 {
		length = 40
	}
	p, _ := dictOrNull(dict, "P").Int()
	encryptMeta := true
	if b, ok := dictOrNull(dict, "EncryptMetadata").Bool(); ok {
		encryptMeta = b
	}

	d := crypt.StandardDictR4{
		R:               r,
		Length:          length / 8,
		P:               int32(p),
		ID:              id,
		EncryptMetadata: encryptMeta,
		CFM:             cfmFromCryptFilters(dict),
	}
	copy(d.O[:], o)
	copy(d.U[:], u)

	if h, ok := d.AuthenticateUser(m.cfg.Password); ok {
		return h, nil
	}
	if h, ok := d.AuthenticateOwner(m.cfg.Password); ok {
		return h, nil
	}
	return nil, &UnsupportedFeatureError{Detail: "incorrect password or unsupported encryption"}
}

func (m *Mutator) authenticateR6(dict pdfval.Value) (*crypt.Handler, error) {
	o, ok1 := dictStringBytes(dict, "O")
	u, ok2 := dictStringBytes(dict, "U")
	oe, ok3 := dictStringBytes(dict, "OE")
	ue, ok4 := dictStringBytes(dict, "UE")
	perms, ok5 := dictStringBytes(dict, "Perms")
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, &CorruptXRefError{Detail: "/Encrypt missing an R6 field"}
	}
	p, _ := dictOrNull(dict, "P").Int()
	encryptMeta := true
	if b, ok := dictOrNull(dict, "EncryptMetadata").Bool(); ok {
		encryptMeta = b
	}

	d := crypt.StandardDictR6{P: int32(p), EncryptMetadata: encryptMeta}
	copy(d.O[:], o)
	copy(d.U[:], u)
	copy(d.OE[:], oe)
	copy(d.UE[:], ue)
	copy(d.Perms[:], perms)

	if h, ok := d.AuthenticateUser(m.cfg.Password); ok {
		return h, nil
	}
	if h, ok := d.AuthenticateOwner(m.cfg.Password); ok {
		return h, nil
	}
	return nil, &UnsupportedFeatureError{Detail: "incorrect password or unsupported encryption"}
}

// cfmFromCryptFilters reads /CF/StdCF/CFM when present, falling back to
// /V's implied method (RC4 for V<=2, still RC4 for V==4 unless a crypt
// filter dictionary says otherwise).
func cfmFromCryptFilters(dict pdfval.Value) crypt.CFM {
	cf, ok := dict.DictGet("CF")
	if !ok {
		return crypt.CFMNone
	}
	std, ok := cf.DictGet("StdCF")
	if !ok {
		return crypt.CFMNone
	}
	name, _ := dictName(std, "CFM")
	switch name {
	case "AESV2":
		return crypt.CFMAESV2
	case "AESV3":
		return crypt.CFMAESV3
	case "V2":
		return crypt.CFMRC4
	default:
		return crypt.CFMNone
	}
}

func dictName(dict pdfval.Value, key string) (string, bool) {
	v, ok := dict.DictGet(key)
	if !ok {
		return "", false
	}
	return v.NameString()
}

func dictStringBytes(dict pdfval.Value, key string) ([]byte, bool) {
	v, ok := dict.DictGet(key)
	if !ok {
		return nil, false
	}
	return v.StringBytes()
}

func firstIDBytes(idArr pdfval.Value) []byte {
	arr, ok := idArr.Array()
	if !ok || len(arr) == 0 {
		return nil
	}
	b, _ := arr[0].StringBytes()
	return b
}
