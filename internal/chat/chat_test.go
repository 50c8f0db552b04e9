package chat_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e_groupchat/internal/chat"
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

type world struct {
	dir       *directory.Client
	messaging *sendbirdtest.Fake
}

func newWorld(t *testing.T, users ...model.Identity) *world {
	t.Helper()

	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	issuer, err := token.NewIssuer("app", "", base64.StdEncoding.EncodeToString(seed), time.Hour)
	require.NoError(t, err)

	w := &world{messaging: sendbirdtest.New()}
	srv := server.NewHttpServer(server.Options{}, issuer, w.messaging, memory.NewCardStore(), memory.NewGroupStore(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	w.dir = directory.New(ts.URL, ts.Client())

	for _, id := range users {
		_, err := w.dir.CreateUser(context.Background(), id, id.String())
		require.NoError(t, err)
	}
	return w
}

func (w *world) login(t *testing.T, id model.Identity) (*chat.Controller, *directory.Channels) {
	t.Helper()

	ks, err := keyring.OpenKeystore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })

	s := session.New(keyring.New(w.dir, ks), w.dir, session.Options{})
	require.NoError(t, s.SetIdentity(context.Background(), id))

	backend := w.dir.Channels(id)
	return chat.New(backend, s), backend
}

func TestChannelConversation(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, "alice", "bob", "carol")
	alice, _ := w.login(t, "alice")
	bob, _ := w.login(t, "bob")

	ch, err := alice.CreateChannel(ctx, "pair", model.Identities("bob"))
	require.NoError(t, err)
	md, err := metadata.Decode(ch.Data)
	require.NoError(t, err)
	assert.Equal(t, model.Identity("alice"), md.OwnerID)
	assert.Len(t, md.GroupID, 32)

	sent, err := alice.Send(ctx, ch, "hello bob")
	require.NoError(t, err)
	assert.True(t, sent.Mine)
	assert.Equal(t, "hello bob", sent.Text)

	channels, err := bob.Channels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	_, err = bob.Send(ctx, channels[0], "hi alice")
	require.NoError(t, err)

	w.messaging.AddMessage(ch.URL, model.Message{MessageType: model.MessageTypeAdmin, Message: "channel frozen"})
	w.messaging.AddMessage(ch.URL, model.Message{
		MessageType: model.MessageTypeFile,
		Name:        "notes.txt",
		FileURL:     "https://files.example/notes.txt",
		Sender:      &model.Sender{UserID: "bob"},
	})
	w.messaging.AddMessage(ch.URL, model.Message{
		MessageType: model.MessageTypeUser,
		Message:     "bm90IGEgcmVhbCBlbnZlbG9wZQ==",
		Data:        metadata.EncodeMessageData(true),
		Sender:      &model.Sender{UserID: "bob"},
	})
	w.messaging.AddMessage(ch.URL, model.Message{
		MessageType: model.MessageTypeUser,
		Message:     "legacy plaintext",
		Sender:      &model.Sender{UserID: "bob"},
	})

	lines, err := bob.Conversation(ctx, channels[0], 0)
	require.NoError(t, err)
	require.Len(t, lines, 6)

	assert.Equal(t, "hello bob", lines[0].Text)
	assert.Equal(t, "alice", lines[0].Author)
	assert.False(t, lines[0].Mine)
	assert.True(t, lines[0].Encrypted)

	assert.Equal(t, "hi alice", lines[1].Text)
	assert.True(t, lines[1].Mine)

	assert.Equal(t, chat.AdminAuthor, lines[2].Author)
	assert.Equal(t, "channel frozen", lines[2].Text)

	assert.Equal(t, "notes.txt", lines[3].Text)
	assert.Equal(t, "https://files.example/notes.txt", lines[3].File)

	assert.Equal(t, chat.Placeholder, lines[4].Text)
	assert.True(t, lines[4].Failed)

	assert.Equal(t, "legacy plaintext", lines[5].Text)
	assert.False(t, lines[5].Encrypted)
}

func TestMessagesNeverStoredInPlaintext(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, "alice", "bob")
	alice, backend := w.login(t, "alice")
	w.login(t, "bob")

	ch, err := alice.CreateChannel(ctx, "", model.Identities("bob"))
	require.NoError(t, err)
	_, err = alice.Send(ctx, ch, "top secret")
	require.NoError(t, err)

	stored, err := backend.ListMessages(ctx, ch.URL, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotContains(t, stored[0].Message, "top secret")
	assert.True(t, metadata.IsEncrypted(stored[0].Data))
}

func TestCreateChannelNeedsParticipantCards(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, "alice", "bob", "carol")
	alice, _ := w.login(t, "alice")
	carol, _ := w.login(t, "carol")

	// bob never bootstrapped, so there is no card for bob yet
	_, err := alice.CreateChannel(ctx, "", model.Identities("bob"))
	var gcErr *session.GroupCreationError
	require.ErrorAs(t, err, &gcErr)
	assert.ErrorIs(t, err, session.ErrCardNotFound)

	ch, err := alice.CreateChannel(ctx, "", model.Identities("carol"))
	require.NoError(t, err)
	_, err = alice.Send(ctx, ch, "for carol")
	require.NoError(t, err)

	lines, err := carol.Conversation(ctx, ch, 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "for carol", lines[0].Text)
}

type stubCrypto struct {
	initialized bool
	createErr   error
	encryptErr  error
}

func (s *stubCrypto) Identity() model.Identity { return "alice" }
func (s *stubCrypto) Initialized() bool        { return s.initialized }

func (s *stubCrypto) CreateGroup(context.Context, string, []model.Identity) error {
	return s.createErr
}

func (s *stubCrypto) EncryptMessage(context.Context, *model.Channel, string) (string, error) {
	return "", s.encryptErr
}

func (s *stubCrypto) DecryptMessages(_ context.Context, _ *model.Channel, msgs []*model.Message) ([]session.Result, error) {
	res := make([]session.Result, len(msgs))
	for i, m := range msgs {
		res[i].Message = m
	}
	return res, nil
}

type countingBackend struct {
	chat.Backend
	creates int
	sends   int
}

func (b *countingBackend) CreateChannel(context.Context, string, []model.Identity, string) (*model.Channel, error) {
	b.creates++
	return &model.Channel{URL: "c"}, nil
}

func (b *countingBackend) SendMessage(context.Context, string, string, string) (*model.Message, error) {
	b.sends++
	return &model.Message{}, nil
}

func TestFailuresBlockTheBackend(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{}

	_, err := chat.New(backend, &stubCrypto{}).CreateChannel(ctx, "", model.Identities("bob"))
	assert.ErrorIs(t, err, session.ErrNotInitialized)

	groupErr := &session.GroupCreationError{GroupID: "g", Err: errors.New("directory down")}
	_, err = chat.New(backend, &stubCrypto{initialized: true, createErr: groupErr}).CreateChannel(ctx, "", model.Identities("bob"))
	assert.ErrorIs(t, err, groupErr)
	assert.Zero(t, backend.creates)

	c := chat.New(backend, &stubCrypto{initialized: true, encryptErr: session.ErrNotInitialized})
	_, err = c.Send(ctx, &model.Channel{URL: "c"}, "hello")
	assert.ErrorIs(t, err, session.ErrNotInitialized)
	_, err = c.Send(ctx, &model.Channel{URL: "c"}, "")
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	assert.Zero(t, backend.sends)
}

type listingBackend struct {
	chat.Backend
	messages []*model.Message
}

func (b *listingBackend) ListMessages(context.Context, string, int) ([]*model.Message, error) {
	return b.messages, nil
}

func TestSenderlessEncryptedMessageShowsPlaceholder(t *testing.T) {
	backend := &listingBackend{messages: []*model.Message{
		{MessageType: model.MessageTypeUser, Message: "c2VhbGVk", Data: metadata.EncodeMessageData(true)},
		{MessageType: model.MessageTypeUser, Message: "plain"},
	}}
	c := chat.New(backend, &stubCrypto{initialized: true})

	lines, err := c.Conversation(context.Background(), &model.Channel{URL: "c"}, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, chat.Placeholder, lines[0].Text)
	assert.True(t, lines[0].Failed)
	assert.Equal(t, "plain", lines[1].Text)
	assert.False(t, lines[1].Encrypted)
}
