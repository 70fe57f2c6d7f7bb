package crypt

import (
	"bytes"
	"crypto/md5"
	"crypto/rc4"
)

// StandardDictR4 holds the fields of an /Encrypt dictionary for revisions
// 2 through 4 (RC4 and AESV2), as read from the trailer.
type StandardDictR4 struct {
	R                   int
	Length              int // key length in bytes, 5..16
	O, U                [32]byte
	P                   int32
	ID                  []byte // first element of the file's /ID array
	EncryptMetadata     bool
	CFM                 CFM // CFMRC4 or CFMAESV2, from /StmF's crypt filter
}

// deriveFromPassword runs algorithm 2 of ISO 32000-1 7.6.3.3, producing the
// candidate file encryption key for the given password attempt.
func (d StandardDictR4) deriveFromPassword(password string) []byte {
	pw := padPassword(password)

	buf := append([]byte(nil), pw...)
	buf = append(buf, d.O[:]...)
	buf = append(buf, byte(d.P), byte(d.P>>8), byte(d.P>>16), byte(d.P>>24))
	buf = append(buf, d.ID...)
	if d.R >= 4 && !d.EncryptMetadata {
		buf = append(buf, 0xff, 0xff, 0xff, 0xff)
	}
	sum := md5.Sum(buf)

	n := d.Length
	if n == 0 {
		n = 5
	}
	if d.R >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(sum[:n])
		}
	}
	return sum[:n]
}

func (d StandardDictR4) userHash(fileKey []byte) [32]byte {
	var v [32]byte
	c, _ := rc4.NewCipher(fileKey)
	if d.R >= 3 {
		buf := append([]byte(nil), padding[:]...)
		buf = append(buf, d.ID...)
		hash := md5.Sum(buf)
		c.XORKeyStream(hash[:], hash[:])
		xor19(hash[:], fileKey)
		copy(v[:16], hash[:])
	} else {
		c.XORKeyStream(v[:], padding[:])
	}
	return v
}

// ownerDecryptionKey runs algorithm 3 steps a-d of ISO 32000-1 7.6.3.4,
// deriving the RC4 key used to recover the padded user password from O.
func (d StandardDictR4) ownerDecryptionKey(ownerPassword string) []byte {
	pw := padPassword(ownerPassword)
	n := d.Length
	if n == 0 {
		n = 5
	}
	sum := md5.Sum(pw)
	if d.R >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(sum[:n])
		}
	}
	return sum[:n]
}

// AuthenticateUser runs algorithm 6: it derives the file key from the
// candidate user password and compares the resulting U hash.
func (d StandardDictR4) AuthenticateUser(password string) (*Handler, bool) {
	key := d.deriveFromPassword(password)
	got := d.userHash(key)
	var ok bool
	if d.R <= 2 {
		ok = bytes.Equal(d.U[:32], got[:32])
	} else {
		ok = bytes.Equal(d.U[:16], got[:16])
	}
	if !ok {
		return nil, false
	}
	return &Handler{cfm: d.cfm(), fileKey: key, encryptMeta: d.EncryptMetadata}, true
}

// AuthenticateOwner runs algorithm 7: it recovers the padded user password
// protected by the owner password, then re-validates it as a user password.
func (d StandardDictR4) AuthenticateOwner(password string) (*Handler, bool) {
	key := d.ownerDecryptionKey(password)

	var recovered [32]byte
	copy(recovered[:], d.O[:])
	if d.R <= 2 {
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(recovered[:], recovered[:])
	} else {
		newKey := make([]byte, len(key))
		for i := 19; i >= 0; i-- {
			for j, b := range key {
				newKey[j] = b ^ byte(i)
			}
			c, _ := rc4.NewCipher(newKey)
			c.XORKeyStream(recovered[:], recovered[:])
		}
	}
	// recovered already holds a full 32-byte padded password; feeding it
	// straight back through AuthenticateUser re-derives the same key as
	// algorithm 7 step c without needing to strip the padding first.
	return d.AuthenticateUser(string(recovered[:]))
}

func (d StandardDictR4) cfm() CFM {
	if d.CFM == CFMNone {
		return CFMRC4
	}
	return d.CFM
}
