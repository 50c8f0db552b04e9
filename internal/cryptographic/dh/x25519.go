package dh

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

const KeySize = curve25519.ScalarSize

// NewX25519KeyPair generates a new X25519 key pair.
func NewX25519KeyPair() (priv, pub []byte, err error) {
	priv = make([]byte, KeySize)
	if _, err = rand.Read(priv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	pub, err = PublicKey(priv)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func PublicKey(priv []byte) ([]byte, error) {
	if len(priv) != KeySize {
		return nil, fmt.Errorf("x25519 private key must be %d bytes, got %d", KeySize, len(priv))
	}
	return curve25519.X25519(priv, curve25519.Basepoint)
}

// X25519SharedSecret computes priv * pub. Low-order public keys are
// rejected.
func X25519SharedSecret(priv, pub []byte) ([]byte, error) {
	if len(priv) != KeySize || len(pub) != KeySize {
		return nil, fmt.Errorf("x25519 keys must be %d bytes", KeySize)
	}
	return curve25519.X25519(priv, pub)
}
