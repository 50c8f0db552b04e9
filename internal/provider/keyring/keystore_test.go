package keyring

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e_groupchat/internal/model"
)

func TestKeystorePersistsKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")

	ks, err := OpenKeystore(path)
	require.NoError(t, err)
	first, created, err := ks.LoadOrCreate("alice")
	require.NoError(t, err)
	assert.True(t, created)

	other, created, err := ks.LoadOrCreate("bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.DHPub, other.DHPub)
	require.NoError(t, ks.Close())

	ks, err = OpenKeystore(path)
	require.NoError(t, err)
	defer ks.Close()

	again, created, err := ks.LoadOrCreate("alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.DHPriv, again.DHPriv)
	assert.Equal(t, first.SignPriv, again.SignPriv)
	assert.True(t, first.CreatedAt.Equal(again.CreatedAt))

	card := again.card("alice")
	_, err = NewCard(card)
	assert.NoError(t, err)
}

func TestNewCardRejectsMalformedKeys(t *testing.T) {
	_, err := NewCard(nil)
	assert.ErrorIs(t, err, ErrInvalidCard)

	ks, err := OpenKeystore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer ks.Close()
	keys, _, err := ks.LoadOrCreate("alice")
	require.NoError(t, err)

	card := keys.card("alice")
	card.SignPub = card.SignPub[:10]
	_, err = NewCard(card)
	assert.ErrorIs(t, err, ErrInvalidCard)
}

type cardsDirectory struct {
	Directory
	cards []*model.Card
}

func (d *cardsDirectory) FindCards(context.Context, ...model.Identity) ([]*model.Card, error) {
	return d.cards, nil
}

func TestFindUsersSkipsMissingAndMalformedCards(t *testing.T) {
	ks, err := OpenKeystore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer ks.Close()
	bob, _, err := ks.LoadOrCreate("bob")
	require.NoError(t, err)
	carol, _, err := ks.LoadOrCreate("carol")
	require.NoError(t, err)

	broken := carol.card("carol")
	broken.DHPub = nil
	dir := &cardsDirectory{cards: []*model.Card{nil, broken, bob.card("bob")}}
	c := &Client{dir: dir, self: "alice"}

	found, err := c.FindUsers(context.Background(), "bob", "carol", "dave")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, model.Identity("bob"), found["bob"].Identity())
}

func TestRecordSignatureCoversEveryField(t *testing.T) {
	ks, err := OpenKeystore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer ks.Close()
	keys, _, err := ks.LoadOrCreate("alice")
	require.NoError(t, err)
	pub := keys.card("alice").SignPub

	rec := &model.GroupRecord{
		OwnerID:      "alice",
		GroupID:      "g1",
		Participants: model.Identities("alice", "bob"),
		Keys:         []model.WrappedKey{{Participant: "alice"}, {Participant: "bob"}},
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	rec.Signature, err = signRecord(ed25519.PrivateKey(keys.SignPriv), rec)
	require.NoError(t, err)
	require.NoError(t, verifyRecord(pub, rec))

	forged := *rec
	forged.Participants = model.Identities("alice", "mallory")
	assert.Error(t, verifyRecord(pub, &forged))

	forged = *rec
	forged.GroupID = "g2"
	assert.Error(t, verifyRecord(pub, &forged))
}
