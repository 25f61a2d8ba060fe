package secretservice

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDHKeyAgreement(t *testing.T) {
	client, err := newDHKeyPair(rand.Reader)
	require.NoError(t, err)
	service, err := newDHKeyPair(rand.Reader)
	require.NoError(t, err)

	require.Len(t, client.publicBytes(), dhGroupSize)

	k1, err := client.sessionKey(service.publicBytes())
	require.NoError(t, err)
	k2, err := service.sessionKey(client.publicBytes())
	require.NoError(t, err)
	assert.Len(t, k1, 16)
	assert.Equal(t, k1, k2)
}

func TestDHKeyPair_PrivateInRange(t *testing.T) {
	// An all-0xff exponent must still land inside [2, p-2].
	kp, err := newDHKeyPair(bytes.NewReader(bytes.Repeat([]byte{0xff}, 32)))
	require.NoError(t, err)
	assert.True(t, kp.priv.Cmp(big.NewInt(2)) >= 0)
	assert.True(t, kp.priv.Cmp(new(big.Int).Sub(ietf1024Prime, big.NewInt(2))) <= 0)

	_, err = newDHKeyPair(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err, "short entropy")
}

func TestSessionKey_RejectsBadPeer(t *testing.T) {
	kp, err := newDHKeyPair(rand.Reader)
	require.NoError(t, err)

	for name, peer := range map[string][]byte{
		"empty":     nil,
		"one":       {1},
		"too long":  make([]byte, dhGroupSize+1),
		"p minus 1": new(big.Int).Sub(ietf1024Prime, big.NewInt(1)).Bytes(),
	} {
		_, err := kp.sessionKey(peer)
		assert.Error(t, err, name)
	}
}

func TestAESRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 16)
	for _, plain := range [][]byte{{}, []byte("tok"), bytes.Repeat([]byte("x"), 16), bytes.Repeat([]byte("y"), 33)} {
		iv, ct, err := aesEncrypt(key, plain)
		require.NoError(t, err)
		assert.Len(t, iv, 16)
		assert.Zero(t, len(ct)%16)

		got, err := aesDecrypt(key, iv, ct)
		require.NoError(t, err)
		assert.Equal(t, string(plain), string(got))
	}
}

func TestAESDecrypt_Errors(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 16)
	iv, ct, err := aesEncrypt(key, []byte("secret"))
	require.NoError(t, err)

	_, err = aesDecrypt(key, iv[:8], ct)
	assert.Error(t, err, "short IV")
	_, err = aesDecrypt(key, iv, ct[:10])
	assert.Error(t, err, "partial block")
	_, err = aesDecrypt(key, iv, nil)
	assert.Error(t, err, "empty")
}

func TestPKCS7Unpad(t *testing.T) {
	_, err := pkcs7Unpad([]byte{1, 2, 3, 0})
	assert.Error(t, err)
	_, err = pkcs7Unpad([]byte{1, 2, 2, 3})
	assert.Error(t, err)
	got, err := pkcs7Unpad([]byte{'a', 'b', 2, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)
}

func TestSessionEncodeDecode(t *testing.T) {
	plain := &session{path: "/s/1"}
	secret, err := plain.encode([]byte("tok"))
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), secret.Value)
	assert.Empty(t, secret.Parameters)

	enc := &session{path: "/s/2", key: bytes.Repeat([]byte{9}, 16)}
	secret, err = enc.encode([]byte("tok"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("tok"), secret.Value)
	got, err := enc.decode(secret)
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), got)
}
