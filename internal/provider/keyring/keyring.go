// Package keyring is a group crypto provider built on X25519, Ed25519 and
// XChaCha20-Poly1305.
//
// Every identity owns an X25519 key (for receiving group keys) and an
// Ed25519 key (for signing), kept in a local bbolt keystore. The public
// halves are published to the directory as a card. A group is a random
// 32-byte key sealed once per participant and signed by its owner; the
// signed record lives in the directory's group store, addressed by
// (owner, group id). Messages are sealed under the group key and signed by
// their sender.
package keyring

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"e2e_groupchat/internal/cryptographic/dh"
	"e2e_groupchat/internal/cryptographic/encryption"
	"e2e_groupchat/internal/cryptographic/kdf"
	"e2e_groupchat/internal/cryptographic/signature"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/session"
	"e2e_groupchat/internal/utils/log"
)

var (
	ErrNotParticipant = errors.New("keyring: not a participant of the group")
	ErrForeignCard    = errors.New("keyring: card was not issued by this provider")
	ErrInvalidCard    = errors.New("keyring: card carries malformed keys")
	ErrBadRecord      = errors.New("keyring: group record does not match request")
)

const (
	wrapInfo   = "e2e_groupchat/group-key-wrap/v1"
	recordTag  = "e2e_groupchat/group-record/v1"
	messageTag = "e2e_groupchat/group-message/v1"
)

var detEnc cbor.EncMode

func init() {
	var err error
	if detEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// Directory publishes and resolves cards and stores group records.
type Directory interface {
	PublishCard(ctx context.Context, token string, card *model.Card) error
	FindCards(ctx context.Context, ids ...model.Identity) ([]*model.Card, error)
	CreateGroup(ctx context.Context, token string, rec *model.GroupRecord) error
	GetGroup(ctx context.Context, owner model.Identity, groupID string) (*model.GroupRecord, error)
}

// Card is a published identity card.
type Card struct {
	card *model.Card
}

func NewCard(c *model.Card) (*Card, error) {
	if c == nil || c.Identity == "" || len(c.DHPub) != dh.KeySize || len(c.SignPub) != ed25519.PublicKeySize {
		return nil, ErrInvalidCard
	}
	return &Card{card: c}, nil
}

func (c *Card) Identity() model.Identity {
	return c.card.Identity
}

func (c *Card) Model() *model.Card {
	return c.card
}

func asCard(c session.Card) (*Card, error) {
	card, ok := c.(*Card)
	if !ok || card == nil || card.card == nil {
		return nil, ErrForeignCard
	}
	return card, nil
}

type Provider struct {
	dir  Directory
	keys *Keystore
}

func New(dir Directory, keys *Keystore) *Provider {
	return &Provider{dir: dir, keys: keys}
}

// Initialize loads (or creates) the local keys for id and publishes its
// card with the identity token.
func (p *Provider) Initialize(ctx context.Context, id model.Identity, token string) (session.Client, error) {
	keys, created, err := p.keys.LoadOrCreate(id)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("generated identity keys", zap.String("identity", id.String()))
	}

	if err := p.dir.PublishCard(ctx, token, keys.card(id)); err != nil {
		return nil, fmt.Errorf("keyring: publish card: %w", err)
	}
	return &Client{dir: p.dir, token: token, self: id, keys: keys}, nil
}

// Client implements session.Client for one local identity.
type Client struct {
	dir   Directory
	token string
	self  model.Identity
	keys  *identityKeys
}

func (c *Client) FindUsers(ctx context.Context, ids ...model.Identity) (map[model.Identity]session.Card, error) {
	res := make(map[model.Identity]session.Card, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	cards, err := c.dir.FindCards(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, mc := range cards {
		if mc == nil {
			continue
		}
		card, err := NewCard(mc)
		if err != nil {
			log.Warn("skipping malformed card", zap.String("identity", mc.Identity.String()), zap.Error(err))
			continue
		}
		res[card.Identity()] = card
	}
	return res, nil
}

func (c *Client) CreateGroup(ctx context.Context, groupID string, participants []session.Card) (session.Group, error) {
	members := []*Card{{card: c.keys.card(c.self)}}
	seen := map[model.Identity]bool{c.self: true}
	for _, p := range participants {
		card, err := asCard(p)
		if err != nil {
			return nil, err
		}
		if seen[card.Identity()] {
			continue
		}
		seen[card.Identity()] = true
		members = append(members, card)
	}

	groupKey := make([]byte, encryption.KeySize)
	if _, err := rand.Read(groupKey); err != nil {
		return nil, err
	}

	rec := &model.GroupRecord{
		OwnerID:   c.self,
		GroupID:   groupID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	for _, m := range members {
		wk, err := wrapKey(groupKey, rec.OwnerID, groupID, m)
		if err != nil {
			return nil, fmt.Errorf("keyring: wrap key for %s: %w", m.Identity(), err)
		}
		rec.Participants = append(rec.Participants, m.Identity())
		rec.Keys = append(rec.Keys, *wk)
	}

	sig, err := signRecord(ed25519.PrivateKey(c.keys.SignPriv), rec)
	if err != nil {
		return nil, err
	}
	rec.Signature = sig

	if err := c.dir.CreateGroup(ctx, c.token, rec); err != nil {
		return nil, err
	}
	return c.newGroup(rec.OwnerID, groupID, groupKey), nil
}

func (c *Client) LoadGroup(ctx context.Context, groupID string, owner session.Card) (session.Group, error) {
	oc, err := asCard(owner)
	if err != nil {
		return nil, err
	}

	rec, err := c.dir.GetGroup(ctx, oc.Identity(), groupID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != oc.Identity() || rec.GroupID != groupID {
		return nil, ErrBadRecord
	}
	if err := verifyRecord(oc.card.SignPub, rec); err != nil {
		return nil, fmt.Errorf("keyring: group record: %w", err)
	}

	for _, wk := range rec.Keys {
		if wk.Participant != c.self {
			continue
		}
		groupKey, err := unwrapKey(&wk, rec.OwnerID, groupID, c.self, c.keys)
		if err != nil {
			return nil, fmt.Errorf("keyring: unwrap group key: %w", err)
		}
		return c.newGroup(rec.OwnerID, groupID, groupKey), nil
	}
	return nil, ErrNotParticipant
}

func (c *Client) newGroup(owner model.Identity, groupID string, key []byte) *Group {
	return &Group{
		owner:    owner,
		groupID:  groupID,
		key:      key,
		self:     c.self,
		signPriv: ed25519.PrivateKey(c.keys.SignPriv),
	}
}

func wrapInfoFor(owner model.Identity, groupID string, participant model.Identity) []byte {
	info, _ := detEnc.Marshal([]string{wrapInfo, string(owner), groupID, string(participant)})
	return info
}

func wrapKey(groupKey []byte, owner model.Identity, groupID string, to *Card) (*model.WrappedKey, error) {
	ephPriv, ephPub, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}
	shared, err := dh.X25519SharedSecret(ephPriv, to.card.DHPub)
	if err != nil {
		return nil, err
	}

	info := wrapInfoFor(owner, groupID, to.Identity())
	salt := append(append([]byte{}, ephPub...), to.card.DHPub...)
	kek, err := kdf.HKDF(shared, salt, info, encryption.KeySize)
	if err != nil {
		return nil, err
	}

	sealed, err := encryption.AEADEncrypt(kek, groupKey, info)
	if err != nil {
		return nil, err
	}
	return &model.WrappedKey{Participant: to.Identity(), EphemeralPub: ephPub, Sealed: sealed}, nil
}

func unwrapKey(wk *model.WrappedKey, owner model.Identity, groupID string, self model.Identity, keys *identityKeys) ([]byte, error) {
	shared, err := dh.X25519SharedSecret(keys.DHPriv, wk.EphemeralPub)
	if err != nil {
		return nil, err
	}

	info := wrapInfoFor(owner, groupID, self)
	salt := append(append([]byte{}, wk.EphemeralPub...), keys.DHPub...)
	kek, err := kdf.HKDF(shared, salt, info, encryption.KeySize)
	if err != nil {
		return nil, err
	}
	return encryption.AEADDecrypt(kek, wk.Sealed, info)
}

func recordDigestInput(rec *model.GroupRecord) ([]byte, error) {
	body, err := detEnc.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append([]byte(recordTag), body...), nil
}

func signRecord(priv ed25519.PrivateKey, rec *model.GroupRecord) ([]byte, error) {
	msg, err := recordDigestInput(rec)
	if err != nil {
		return nil, err
	}
	return signature.ED25519Sign(priv, msg)
}

func verifyRecord(pub []byte, rec *model.GroupRecord) error {
	msg, err := recordDigestInput(rec)
	if err != nil {
		return err
	}
	return signature.ED25519Verify(pub, msg, rec.Signature)
}
