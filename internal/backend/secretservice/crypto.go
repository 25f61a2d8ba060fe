// SPDX-License-Identifier: Apache-2.0

package secretservice

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/godbus/dbus/v5"
	"golang.org/x/crypto/hkdf"
)

// algorithmDH negotiates an encrypted transfer session; algorithmPlain is
// the fallback for services that do not implement it.
const (
	algorithmDH    = "dh-ietf1024-sha256-aes128-cbc-pkcs7"
	algorithmPlain = "plain"
)

// ietf1024Prime is the RFC 2409 Group 2 prime used by algorithmDH.
var ietf1024Prime, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1"+
		"29024E088A67CC74020BBEA63B139B22514A08798E3404DD"+
		"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245"+
		"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED"+
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381"+
		"FFFFFFFFFFFFFFFF",
	16,
)

const dhGroupSize = 128

var ietf1024Generator = big.NewInt(2)

// session is an open transfer session. key is nil for plain sessions.
type session struct {
	path dbus.ObjectPath
	key  []byte
}

// dhKeyPair is the client half of a DH session negotiation.
type dhKeyPair struct {
	priv *big.Int
	pub  *big.Int
}

// newDHKeyPair draws a 256-bit private exponent in [2, p-2] from r.
func newDHKeyPair(r io.Reader) (*dhKeyPair, error) {
	privBytes := make([]byte, 32)
	if _, err := io.ReadFull(r, privBytes); err != nil {
		return nil, fmt.Errorf("generate DH key: %w", err)
	}
	priv := new(big.Int).SetBytes(privBytes)
	pMinus3 := new(big.Int).Sub(ietf1024Prime, big.NewInt(3))
	priv.Mod(priv, pMinus3)
	priv.Add(priv, big.NewInt(2))

	return &dhKeyPair{
		priv: priv,
		pub:  new(big.Int).Exp(ietf1024Generator, priv, ietf1024Prime),
	}, nil
}

// publicBytes is the public key as sent on the wire.
func (k *dhKeyPair) publicBytes() []byte {
	return groupBytes(k.pub)
}

// sessionKey derives the AES-128 key shared with the peer: HKDF-SHA256 over
// the padded shared secret with no salt and no info, as libsecret does.
func (k *dhKeyPair) sessionKey(peerPub []byte) ([]byte, error) {
	if len(peerPub) == 0 || len(peerPub) > dhGroupSize {
		return nil, fmt.Errorf("invalid peer public key length %d", len(peerPub))
	}
	peer := new(big.Int).SetBytes(peerPub)
	if peer.Cmp(big.NewInt(1)) <= 0 || peer.Cmp(new(big.Int).Sub(ietf1024Prime, big.NewInt(1))) >= 0 {
		return nil, errors.New("peer public key out of range")
	}
	shared := new(big.Int).Exp(peer, k.priv, ietf1024Prime)

	key := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, groupBytes(shared), nil, nil), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// groupBytes serializes n big-endian, left-padded to the group size.
func groupBytes(n *big.Int) []byte {
	buf := make([]byte, dhGroupSize)
	n.FillBytes(buf)
	return buf
}

// aesEncrypt encrypts plaintext with AES-128-CBC/PKCS7 under a random IV.
func aesEncrypt(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, aes.BlockSize)
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

// aesDecrypt reverses aesEncrypt.
func aesDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext length is not a multiple of AES block size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padding)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty padded data")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, errors.New("invalid PKCS7 padding")
	}
	for i := len(data) - padding; i < len(data); i++ {
		if data[i] != byte(padding) {
			return nil, errors.New("invalid PKCS7 padding byte")
		}
	}
	return data[:len(data)-padding], nil
}

// encode wraps value for transfer over s.
func (s *session) encode(value []byte) (Secret, error) {
	secret := Secret{
		Session:     s.path,
		Parameters:  []byte{},
		Value:       value,
		ContentType: "text/plain; charset=utf8",
	}
	if s.key == nil {
		return secret, nil
	}
	iv, ciphertext, err := aesEncrypt(s.key, value)
	if err != nil {
		return Secret{}, fmt.Errorf("encrypt secret: %w", err)
	}
	secret.Parameters, secret.Value = iv, ciphertext
	return secret, nil
}

// decode unwraps a secret received over s.
func (s *session) decode(secret Secret) ([]byte, error) {
	if s.key == nil {
		return secret.Value, nil
	}
	value, err := aesDecrypt(s.key, secret.Parameters, secret.Value)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret: %w", err)
	}
	return value, nil
}
