// Package token mints and verifies the identity tokens handed to the crypto
// provider. Tokens are EdDSA-signed JWTs whose subject is the identity.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"e2e_groupchat/internal/model"
)

var ErrInvalidToken = errors.New("invalid identity token")

type Issuer struct {
	appID string
	keyID string
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	ttl   time.Duration
	now   func() time.Time
}

// NewIssuer builds an issuer from a base64 encoded 32-byte Ed25519 seed.
func NewIssuer(appID, keyID, seedB64 string, ttl time.Duration) (*Issuer, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("token: decode signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("token: signing key must be a %d byte seed, got %d", ed25519.SeedSize, len(seed))
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Issuer{
		appID: appID,
		keyID: keyID,
		priv:  priv,
		pub:   priv.Public().(ed25519.PublicKey),
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

func (i *Issuer) Issue(id model.Identity) (string, error) {
	if id == "" {
		return "", errors.New("token: empty identity")
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    i.appID,
		Subject:   string(id),
		Audience:  jwt.ClaimStrings{i.appID},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if i.keyID != "" {
		t.Header["kid"] = i.keyID
	}
	return t.SignedString(i.priv)
}

// Verify checks signature, issuer, audience and expiry and returns the
// token's identity.
func (i *Issuer) Verify(raw string) (model.Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return i.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(i.appID),
		jwt.WithAudience(i.appID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return model.Identity(claims.Subject), nil
}
