package keyring_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e_groupchat/internal/directory"
	"e2e_groupchat/internal/metadata"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/provider/keyring"
	"e2e_groupchat/internal/repository/memory"
	"e2e_groupchat/internal/sendbird/sendbirdtest"
	"e2e_groupchat/internal/service/server"
	"e2e_groupchat/internal/session"
	"e2e_groupchat/internal/token"
)

func newDirectory(t *testing.T) *directory.Client {
	t.Helper()

	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	issuer, err := token.NewIssuer("app", "", base64.StdEncoding.EncodeToString(seed), time.Hour)
	require.NoError(t, err)

	srv := server.NewHttpServer(server.Options{}, issuer, sendbirdtest.New(), memory.NewCardStore(), memory.NewGroupStore(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return directory.New(ts.URL, ts.Client())
}

func openKeystore(t *testing.T) *keyring.Keystore {
	t.Helper()
	ks, err := keyring.OpenKeystore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}

func initClient(t *testing.T, dir *directory.Client, id model.Identity) session.Client {
	t.Helper()
	ctx := context.Background()

	tok, err := dir.Token(ctx, id)
	require.NoError(t, err)
	c, err := keyring.New(dir, openKeystore(t)).Initialize(ctx, id, tok)
	require.NoError(t, err)
	return c
}

func cardOf(t *testing.T, c session.Client, id model.Identity) session.Card {
	t.Helper()
	cards, err := c.FindUsers(context.Background(), id)
	require.NoError(t, err)
	card, ok := cards[id]
	require.True(t, ok, "no card for %s", id)
	return card
}

func TestGroupRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)
	alice := initClient(t, dir, "alice")
	bob := initClient(t, dir, "bob")

	owned, err := alice.CreateGroup(ctx, "g1", []session.Card{cardOf(t, alice, "bob")})
	require.NoError(t, err)

	loaded, err := bob.LoadGroup(ctx, "g1", cardOf(t, bob, "alice"))
	require.NoError(t, err)

	ct, err := owned.Encrypt(ctx, "hello")
	require.NoError(t, err)
	assert.NotContains(t, ct, "hello")

	pt, err := loaded.Decrypt(ctx, ct, cardOf(t, bob, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "hello", pt)

	reply, err := loaded.Encrypt(ctx, "hi alice")
	require.NoError(t, err)
	pt, err = owned.Decrypt(ctx, reply, cardOf(t, alice, "bob"))
	require.NoError(t, err)
	assert.Equal(t, "hi alice", pt)

	// the owner can reload its own group from the directory
	reloaded, err := alice.LoadGroup(ctx, "g1", cardOf(t, alice, "alice"))
	require.NoError(t, err)
	pt, err = reloaded.Decrypt(ctx, reply, cardOf(t, alice, "bob"))
	require.NoError(t, err)
	assert.Equal(t, "hi alice", pt)
}

func TestDecryptRejectsTamperingAndWrongSender(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)
	alice := initClient(t, dir, "alice")
	bob := initClient(t, dir, "bob")

	group, err := alice.CreateGroup(ctx, "g1", []session.Card{cardOf(t, alice, "bob")})
	require.NoError(t, err)
	ct, err := group.Encrypt(ctx, "hello")
	require.NoError(t, err)

	_, err = group.Decrypt(ctx, ct, cardOf(t, alice, "bob"))
	assert.ErrorIs(t, err, keyring.ErrSenderMismatch)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = group.Decrypt(ctx, base64.StdEncoding.EncodeToString(raw), cardOf(t, alice, "alice"))
	assert.Error(t, err)

	_, err = group.Decrypt(ctx, "not base64!", cardOf(t, alice, "alice"))
	assert.Error(t, err)

	// a ciphertext from another group does not open
	other, err := alice.CreateGroup(ctx, "g2", []session.Card{cardOf(t, alice, "bob")})
	require.NoError(t, err)
	foreign, err := other.Encrypt(ctx, "elsewhere")
	require.NoError(t, err)
	_, err = group.Decrypt(ctx, foreign, cardOf(t, alice, "alice"))
	assert.Error(t, err)

	loaded, err := bob.LoadGroup(ctx, "g1", cardOf(t, bob, "alice"))
	require.NoError(t, err)
	_, err = loaded.Decrypt(ctx, foreign, cardOf(t, bob, "alice"))
	assert.Error(t, err)
}

func TestLoadGroupOutsider(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)
	alice := initClient(t, dir, "alice")
	initClient(t, dir, "bob")
	carol := initClient(t, dir, "carol")

	_, err := alice.CreateGroup(ctx, "g1", []session.Card{cardOf(t, alice, "bob")})
	require.NoError(t, err)

	_, err = carol.LoadGroup(ctx, "g1", cardOf(t, carol, "alice"))
	assert.ErrorIs(t, err, keyring.ErrNotParticipant)

	// groups are addressed by owner
	_, err = carol.LoadGroup(ctx, "g1", cardOf(t, carol, "bob"))
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestCreateGroupDuplicate(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)
	alice := initClient(t, dir, "alice")
	initClient(t, dir, "bob")

	_, err := alice.CreateGroup(ctx, "g1", []session.Card{cardOf(t, alice, "bob")})
	require.NoError(t, err)
	_, err = alice.CreateGroup(ctx, "g1", []session.Card{cardOf(t, alice, "bob")})
	assert.ErrorIs(t, err, directory.ErrConflict)
}

func TestInitializeRejectsForeignToken(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	tok, err := dir.Token(ctx, "bob")
	require.NoError(t, err)
	_, err = keyring.New(dir, openKeystore(t)).Initialize(ctx, "alice", tok)
	assert.ErrorIs(t, err, directory.ErrForbidden)
}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	newSession := func(id model.Identity) *session.Session {
		s := session.New(keyring.New(dir, openKeystore(t)), dir, session.Options{})
		require.NoError(t, s.SetIdentity(ctx, id))
		return s
	}
	alice := newSession("alice")
	bob := newSession("bob")
	carol := newSession("carol")

	require.NoError(t, alice.CreateGroup(ctx, "g1", model.Identities("alice", "bob")))
	data, err := metadata.Encode("alice", "g1")
	require.NoError(t, err)
	ch := &model.Channel{URL: "c1", Data: data}

	var msgs []*model.Message
	for i, from := range []*session.Session{alice, bob, alice} {
		ct, err := from.EncryptMessage(ctx, ch, "m"+string(rune('0'+i)))
		require.NoError(t, err)
		msgs = append(msgs, &model.Message{
			MessageID:   int64(i + 1),
			MessageType: model.MessageTypeUser,
			Message:     ct,
			Data:        metadata.EncodeMessageData(true),
			Sender:      &model.Sender{UserID: from.Identity()},
		})
	}

	results, err := bob.DecryptMessages(ctx, ch, msgs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "m"+string(rune('0'+i)), r.Plaintext)
	}

	results, err = carol.DecryptMessages(ctx, ch, msgs)
	require.NoError(t, err)
	for _, r := range results {
		var decErr *session.DecryptError
		assert.ErrorAs(t, r.Err, &decErr)
		assert.ErrorIs(t, r.Err, keyring.ErrNotParticipant)
	}
}
