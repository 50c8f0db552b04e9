// Package chat is the chat surface: it keeps every channel it creates
// bound to a crypto group and never lets plaintext reach the messaging
// backend.
package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"e2e_groupchat/internal/metadata"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/session"
	"e2e_groupchat/internal/utils/log"
)

const (
	// Placeholder is shown in place of a message that could not be
	// decrypted.
	Placeholder = "ENCRYPTED MESSAGE"
	AdminAuthor = "Channel Admin"

	DefaultPageSize = 30
)

var ErrEmptyMessage = errors.New("chat: message is empty")

type (
	// Backend is the messaging backend, already authenticated as the local
	// identity.
	Backend interface {
		CreateChannel(ctx context.Context, name string, members []model.Identity, data string) (*model.Channel, error)
		ListChannels(ctx context.Context, limit int) ([]*model.Channel, error)
		GetChannel(ctx context.Context, channelURL string) (*model.Channel, error)
		ListMessages(ctx context.Context, channelURL string, limit int) ([]*model.Message, error)
		SendMessage(ctx context.Context, channelURL, text, data string) (*model.Message, error)
	}

	// Crypto is the part of the session the controller needs.
	Crypto interface {
		Identity() model.Identity
		Initialized() bool
		CreateGroup(ctx context.Context, groupID string, participants []model.Identity) error
		EncryptMessage(ctx context.Context, channel *model.Channel, plaintext string) (string, error)
		DecryptMessages(ctx context.Context, channel *model.Channel, messages []*model.Message) ([]session.Result, error)
	}

	// Line is one rendered conversation entry.
	Line struct {
		MessageID int64
		AuthorID  model.Identity
		Author    string
		Text      string
		File      string
		Encrypted bool
		// Failed is set when an encrypted message could not be decrypted;
		// Text then holds Placeholder.
		Failed    bool
		Mine      bool
		CreatedAt time.Time
	}

	Controller struct {
		backend Backend
		crypto  Crypto
	}
)

func New(backend Backend, crypto Crypto) *Controller {
	return &Controller{backend: backend, crypto: crypto}
}

func newGroupID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateChannel creates a crypto group for the local identity and members,
// then a distinct channel whose data names that group. No channel is
// created when the group cannot be.
func (c *Controller) CreateChannel(ctx context.Context, name string, members []model.Identity) (*model.Channel, error) {
	if !c.crypto.Initialized() {
		return nil, session.ErrNotInitialized
	}
	self := c.crypto.Identity()

	groupID, err := newGroupID()
	if err != nil {
		return nil, fmt.Errorf("chat: group id: %w", err)
	}

	participants := append([]model.Identity{self}, members...)
	if err := c.crypto.CreateGroup(ctx, groupID, participants); err != nil {
		return nil, err
	}

	data, err := metadata.Encode(self, groupID)
	if err != nil {
		return nil, err
	}

	ch, err := c.backend.CreateChannel(ctx, name, members, data)
	if err != nil {
		return nil, fmt.Errorf("chat: create channel: %w", err)
	}
	if ch.Data != data {
		// distinct channels are reused; the existing one keeps its group
		log.Info("reusing existing channel",
			zap.String("channel", ch.URL),
			zap.String("orphaned_group_id", groupID))
	}
	return ch, nil
}

func (c *Controller) Channels(ctx context.Context) ([]*model.Channel, error) {
	return c.backend.ListChannels(ctx, 0)
}

func (c *Controller) Channel(ctx context.Context, channelURL string) (*model.Channel, error) {
	return c.backend.GetChannel(ctx, channelURL)
}

// Send encrypts text for channel's group and sends the ciphertext. Nothing
// is sent when encryption fails.
func (c *Controller) Send(ctx context.Context, channel *model.Channel, text string) (*Line, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}

	ciphertext, err := c.crypto.EncryptMessage(ctx, channel, text)
	if err != nil {
		return nil, err
	}

	m, err := c.backend.SendMessage(ctx, channel.URL, ciphertext, metadata.EncodeMessageData(true))
	if err != nil {
		return nil, fmt.Errorf("chat: send message: %w", err)
	}

	line := c.render(m, session.Result{Message: m, Plaintext: text, Decrypted: true})
	return &line, nil
}

// Conversation loads the latest limit messages of channel, decrypted, in
// backend order.
func (c *Controller) Conversation(ctx context.Context, channel *model.Channel, limit int) ([]Line, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	msgs, err := c.backend.ListMessages(ctx, channel.URL, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}

	results, err := c.crypto.DecryptMessages(ctx, channel, msgs)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, len(results))
	for i, r := range results {
		lines[i] = c.render(r.Message, r)
	}
	return lines, nil
}

func (c *Controller) render(m *model.Message, r session.Result) Line {
	line := Line{
		MessageID: m.MessageID,
		AuthorID:  m.SenderID(),
		Author:    m.SenderID().String(),
		CreatedAt: time.UnixMilli(m.CreatedAt),
	}
	line.Mine = line.AuthorID != "" && line.AuthorID == c.crypto.Identity()

	switch m.MessageType {
	case model.MessageTypeAdmin:
		line.Author = AdminAuthor
		line.Text = m.Message
	case model.MessageTypeFile:
		line.File = m.FileURL
		line.Text = m.Name
	default:
		switch {
		case r.Decrypted:
			line.Encrypted = true
			line.Text = r.Plaintext
		case session.Decryptable(m), metadata.IsEncrypted(m.Data):
			line.Encrypted = true
			line.Failed = true
			line.Text = Placeholder
		default:
			line.Text = m.Message
		}
	}
	return line
}
