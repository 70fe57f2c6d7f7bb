package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/xdg-go/stringprep"
)

// StandardDictR6 holds the AESV3 (revision 5/6, 256-bit) fields of an
// /Encrypt dictionary: U/UE are the user validation/key hashes, O/OE the
// owner ones, and Perms the encrypted permission/consistency block.
type StandardDictR6 struct {
	U, O   [48]byte
	UE, OE [32]byte
	Perms  [16]byte
	P      int32
	EncryptMetadata bool
}

var zeroIV [16]byte

// normalizePassword applies SASLprep (RFC 4013) to a UTF-8 password per
// ISO 32000-2 7.6.4.3.3, then truncates to 127 bytes as the spec requires.
func normalizePassword(password string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(password)
	if err != nil {
		return nil, fmt.Errorf("crypt: SASLprep normalization: %w", err)
	}
	buf := []byte(prepped)
	if len(buf) > 127 {
		buf = buf[:127]
	}
	return buf, nil
}

// hardenedHash implements algorithm 2.B of ISO 32000-2 Annex B: a
// repeated, self-selecting SHA-256/384/512 hash used for revision 6
// password validation and key derivation. `extra` is the 48-byte U value
// when hashing an owner password, or nil for a user password.
func hardenedHash(password, salt, extra []byte) []byte {
	h := sha256.New()
	h.Write(password)
	h.Write(salt)
	h.Write(extra)
	k := h.Sum(nil)

	round := make([]byte, 64*(len(password)+len(k)+len(extra)))
	for i := 0; i < 64 || int(round[len(round)-1]) > i-32; i++ {
		round = round[:0]
		for j := 0; j < 64; j++ {
			round = append(round, password...)
			round = append(round, k...)
			round = append(round, extra...)
		}

		block, _ := aes.NewCipher(k[:16])
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(round, round)

		sum := 0
		for _, b := range round[:16] {
			sum += int(b)
		}
		var next hash.Hash
		switch sum % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(round)
		k = next.Sum(k[:0])
	}
	return k[:32]
}

// AuthenticateUser runs algorithms 11/2.B: validate the password against
// the first 32 bytes of U, then unwrap the file key from UE.
func (d StandardDictR6) AuthenticateUser(password string) (*Handler, bool) {
	pw, err := normalizePassword(password)
	if err != nil {
		return nil, false
	}
	if !bytes.Equal(hardenedHash(pw, d.U[32:40], nil), d.U[:32]) {
		return nil, false
	}
	key := hardenedHash(pw, d.U[40:48], nil)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, false
	}
	fileKey := make([]byte, 32)
	cipher.NewCBCDecrypter(block, zeroIV[:]).CryptBlocks(fileKey, d.UE[:])
	if !d.checkPerms(fileKey) {
		return nil, false
	}
	return &Handler{cfm: CFMAESV3, fileKey: fileKey, encryptMeta: d.EncryptMetadata}, true
}

// AuthenticateOwner runs algorithm 12: the owner hash is salted with the
// full U string, distinguishing it from the user check.
func (d StandardDictR6) AuthenticateOwner(password string) (*Handler, bool) {
	pw, err := normalizePassword(password)
	if err != nil {
		return nil, false
	}
	if !bytes.Equal(hardenedHash(pw, d.O[32:40], d.U[:]), d.O[:32]) {
		return nil, false
	}
	key := hardenedHash(pw, d.O[40:48], d.U[:])
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, false
	}
	fileKey := make([]byte, 32)
	cipher.NewCBCDecrypter(block, zeroIV[:]).CryptBlocks(fileKey, d.OE[:])
	if !d.checkPerms(fileKey) {
		return nil, false
	}
	return &Handler{cfm: CFMAESV3, fileKey: fileKey, encryptMeta: d.EncryptMetadata}, true
}

// checkPerms decrypts the /Perms entry and cross-validates it against P
// and EncryptMetadata, per ISO 32000-2 7.6.4.3.5.
func (d StandardDictR6) checkPerms(fileKey []byte) bool {
	block, err := aes.NewCipher(fileKey)
	if err != nil {
		return false
	}
	var buf [16]byte
	block.Decrypt(buf[:], d.Perms[:])
	if !bytes.Equal(buf[9:12], []byte("adb")) {
		return false
	}
	p := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16 | int32(buf[3])<<24
	if p != d.P {
		return false
	}
	want := byte('F')
	if d.EncryptMetadata {
		want = 'T'
	}
	return buf[8] == want
}
