package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rc4"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerDecryptRC4IsSelfInverse(t *testing.T) {
	h := &Handler{cfm: CFMRC4, fileKey: []byte{1, 2, 3, 4, 5}}
	plain := []byte("secret stream data")

	ct, err := h.Decrypt(7, 0, plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, ct)

	back, err := h.Decrypt(7, 0, ct)
	require.NoError(t, err)
	assert.Equal(t, plain, back)
}

func TestHandlerDecryptNoneIsIdentity(t *testing.T) {
	var h *Handler
	data := []byte("unchanged")
	got, err := h.Decrypt(1, 0, data)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestHandlerDecryptAESV2(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	h := &Handler{cfm: CFMAESV2, fileKey: key}

	objKey := h.objectKey(9, 0)
	block, err := aes.NewCipher(objKey)
	require.NoError(t, err)

	plain := []byte("0123456789ABCDEF") // exactly one AES block
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{16}, 16)...)

	iv := make([]byte, aes.BlockSize)
	for i := range iv {
		iv[i] = byte(i)
	}
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	wire := append(append([]byte{}, iv...), ct...)
	got, err := h.Decrypt(9, 0, wire)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestObjectKeyAESV3SkipsPerObjectDerivation(t *testing.T) {
	h := &Handler{cfm: CFMAESV3, fileKey: bytes.Repeat([]byte{0xAB}, 32)}
	assert.Equal(t, h.fileKey, h.objectKey(5, 0))
	assert.Equal(t, h.fileKey, h.objectKey(99, 3), "AESV3 object keys never depend on num/gen")
}

func TestStandardDictR4AuthenticateUserRoundTrip(t *testing.T) {
	d := StandardDictR4{R: 3, Length: 16, P: -4, ID: []byte("0123456789ABCDEF"), EncryptMetadata: true}

	fileKey := d.deriveFromPassword("correct horse")
	hash := d.userHash(fileKey)
	copy(d.U[:], hash[:16])

	h, ok := d.AuthenticateUser("correct horse")
	require.True(t, ok)
	assert.Equal(t, fileKey, h.fileKey)

	_, ok = d.AuthenticateUser("wrong password")
	assert.False(t, ok)
}

func TestStandardDictR4AuthenticateOwnerRoundTrip(t *testing.T) {
	d := StandardDictR4{R: 2, Length: 5, P: -4, ID: []byte("0123456789ABCDEF"), EncryptMetadata: true}

	paddedUser := padPassword("user-pw")
	ownerKey := d.ownerDecryptionKey("owner-pw")
	c, err := rc4.NewCipher(ownerKey)
	require.NoError(t, err)
	c.XORKeyStream(d.O[:], paddedUser)

	fileKey := d.deriveFromPassword("user-pw")
	hash := d.userHash(fileKey)
	copy(d.U[:], hash[:])

	h, ok := d.AuthenticateOwner("owner-pw")
	require.True(t, ok)
	assert.Equal(t, fileKey, h.fileKey)
}
