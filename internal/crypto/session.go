// Package crypto implements the per-connection RSA session: the
// server's keypair, the peer's published public key, and chunked
// PKCS#1 v1.5 encryption over the netstring transport.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"
)

// KeyBits is the RSA modulus size for generated keypairs.
const KeyBits = 2048

// pkcs1Overhead is the minimum PKCS#1 v1.5 padding per encrypted block.
const pkcs1Overhead = 11

// GenerateKeyPair generates the server's RSA keypair. Done once at
// startup; every connection shares it.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	key.Precompute()
	return key, nil
}

// PublicKeyParts returns the wire form of a public key: big-endian
// modulus bytes and the public exponent.
func PublicKeyParts(pub *rsa.PublicKey) (n []byte, e int64) {
	return pub.N.Bytes(), int64(pub.E)
}

// PublicKeyFromParts rebuilds a peer public key from its wire form.
func PublicKeyFromParts(n []byte, e int64) (*rsa.PublicKey, error) {
	if len(n) == 0 {
		return nil, fmt.Errorf("building public key: empty modulus")
	}
	if e <= 1 || e > 1<<31 {
		return nil, fmt.Errorf("building public key: bad exponent %d", e)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(e)}, nil
}

// Session carries the crypto state of one connection. The private key
// is the server's (shared); Peer is set once the client announces its
// public key and stays nil before the handshake.
type Session struct {
	Private *rsa.PrivateKey
	Peer    *rsa.PublicKey
}

// NewSession creates a session around the server keypair with no peer
// key yet.
func NewSession(private *rsa.PrivateKey) *Session {
	return &Session{Private: private}
}

// HasPeerKey reports whether the handshake has completed.
func (s *Session) HasPeerKey() bool {
	return s.Peer != nil
}

// Encrypt encrypts msg with the peer's public key, splitting into
// PKCS#1 v1.5 blocks sized to the peer modulus.
func (s *Session) Encrypt(msg []byte) ([]byte, error) {
	if s.Peer == nil {
		return nil, fmt.Errorf("encrypting: no peer key")
	}
	k := s.Peer.Size()
	chunk := k - pkcs1Overhead
	out := make([]byte, 0, ((len(msg)/chunk)+1)*k)
	for len(msg) > 0 {
		n := min(len(msg), chunk)
		block, err := rsa.EncryptPKCS1v15(rand.Reader, s.Peer, msg[:n])
		if err != nil {
			return nil, fmt.Errorf("encrypting block: %w", err)
		}
		out = append(out, block...)
		msg = msg[n:]
	}
	return out, nil
}

// Decrypt decrypts data with the server's private key. data must be a
// whole number of modulus-size blocks.
func (s *Session) Decrypt(data []byte) ([]byte, error) {
	k := s.Private.PublicKey.Size()
	if len(data) == 0 || len(data)%k != 0 {
		return nil, fmt.Errorf("decrypting: length %d is not a multiple of block size %d", len(data), k)
	}
	out := make([]byte, 0, len(data))
	for off := 0; off < len(data); off += k {
		block, err := rsa.DecryptPKCS1v15(nil, s.Private, data[off:off+k])
		if err != nil {
			return nil, fmt.Errorf("decrypting block at %d: %w", off, err)
		}
		out = append(out, block...)
	}
	return out, nil
}
