package encryption

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAEADRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	ct, err := AEADEncrypt(key, []byte("hello"), []byte("g1"))
	require.NoError(t, err)

	pt, err := AEADDecrypt(key, ct, []byte("g1"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))

	_, err = AEADDecrypt(key, ct, []byte("g2"))
	assert.Error(t, err, "aad mismatch")

	ct[len(ct)-1] ^= 0x01
	_, err = AEADDecrypt(key, ct, []byte("g1"))
	assert.Error(t, err, "tampered tag")

	_, err = AEADDecrypt(key, ct[:10], nil)
	assert.Error(t, err)
}

func TestAEADFreshNonce(t *testing.T) {
	key := make([]byte, KeySize)
	a, err := AEADEncrypt(key, []byte("same"), nil)
	require.NoError(t, err)
	b, err := AEADEncrypt(key, []byte("same"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
