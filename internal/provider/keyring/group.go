package keyring

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"e2e_groupchat/internal/cryptographic/encryption"
	"e2e_groupchat/internal/cryptographic/signature"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/session"
)

var ErrSenderMismatch = errors.New("keyring: ciphertext was not sent by the given sender")

// envelope is the wire form of one group message, CBOR encoded and then
// base64 encoded so it fits in a text message body.
type envelope struct {
	Sender    model.Identity `cbor:"1,keyasint"`
	Sealed    []byte         `cbor:"2,keyasint"`
	Signature []byte         `cbor:"3,keyasint"`
}

// Group is a loaded group key.
type Group struct {
	owner    model.Identity
	groupID  string
	key      []byte
	self     model.Identity
	signPriv ed25519.PrivateKey
}

func (g *Group) ID() string {
	return g.groupID
}

func (g *Group) Owner() model.Identity {
	return g.owner
}

func (g *Group) aad(sender model.Identity) []byte {
	aad, _ := detEnc.Marshal([]string{messageTag, string(g.owner), g.groupID, string(sender)})
	return aad
}

func signedPart(aad, sealed []byte) []byte {
	return append(append([]byte{}, aad...), sealed...)
}

func (g *Group) Encrypt(_ context.Context, plaintext string) (string, error) {
	aad := g.aad(g.self)
	sealed, err := encryption.AEADEncrypt(g.key, []byte(plaintext), aad)
	if err != nil {
		return "", err
	}
	sig, err := signature.ED25519Sign(g.signPriv, signedPart(aad, sealed))
	if err != nil {
		return "", err
	}

	raw, err := detEnc.Marshal(&envelope{Sender: g.self, Sealed: sealed, Signature: sig})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (g *Group) Decrypt(_ context.Context, ciphertext string, sender session.Card) (string, error) {
	sc, err := asCard(sender)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("keyring: decode ciphertext: %w", err)
	}
	var env envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("keyring: decode envelope: %w", err)
	}
	if env.Sender != sc.Identity() {
		return "", ErrSenderMismatch
	}

	aad := g.aad(env.Sender)
	if err := signature.ED25519Verify(sc.card.SignPub, signedPart(aad, env.Sealed), env.Signature); err != nil {
		return "", fmt.Errorf("keyring: message signature: %w", err)
	}

	plaintext, err := encryption.AEADDecrypt(g.key, env.Sealed, aad)
	if err != nil {
		return "", fmt.Errorf("keyring: open message: %w", err)
	}
	return string(plaintext), nil
}
