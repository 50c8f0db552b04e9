package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"e2e_groupchat/internal/metadata"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/utils/log"
)

// Result is the outcome for one message of a DecryptMessages batch.
//
// Messages that are not encrypted user messages pass through with
// Decrypted false and a nil Err. A failed decrypt leaves Plaintext empty and
// sets Err to a *DecryptError.
type Result struct {
	Message   *model.Message
	Plaintext string
	Decrypted bool
	Err       error
}

// Decryptable reports whether m should be handed to a group for
// decryption.
func Decryptable(m *model.Message) bool {
	return m != nil &&
		m.MessageType == model.MessageTypeUser &&
		m.Sender != nil &&
		metadata.IsEncrypted(m.Data)
}

// DecryptMessages decrypts a batch of messages from channel. The channel's
// group is loaded once for the whole batch and messages are decrypted
// concurrently; results keep the order of messages.
//
// Per-message failures, and a group that cannot be loaded, never fail the
// batch: they show up in the affected results and are logged. The returned
// error is ErrNotInitialized or the context's error.
func (s *Session) DecryptMessages(ctx context.Context, channel *model.Channel, messages []*model.Message) ([]Result, error) {
	client, err := s.activeClient()
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(messages))
	pending := make([]int, 0, len(messages))
	for i, m := range messages {
		results[i].Message = m
		if Decryptable(m) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return results, nil
	}

	group, err := s.loadGroup(ctx, client, channel)
	if err != nil {
		var mdErr *MetadataError
		if errors.As(err, &mdErr) {
			log.Debug("channel has no usable group metadata", zap.String("channel", channel.URL), zap.Error(err))
		} else {
			log.Warn("load channel group failed", zap.String("channel", channel.URL), zap.Error(err))
		}
		for _, i := range pending {
			m := messages[i]
			results[i].Err = &DecryptError{MessageID: m.MessageID, Sender: m.SenderID(), Err: err}
		}
		return results, ctx.Err()
	}

	cards := newCardCache(client)

	var g errgroup.Group
	g.SetLimit(s.opts.DecryptConcurrency)
	for _, i := range pending {
		m := messages[i]
		g.Go(func() error {
			plaintext, err := decryptOne(ctx, group, cards, m)
			if err != nil {
				results[i].Err = &DecryptError{MessageID: m.MessageID, Sender: m.SenderID(), Err: err}
				log.Warn("decrypt message failed",
					zap.String("channel", channel.URL),
					zap.Int64("message_id", m.MessageID),
					zap.Error(err))
				return nil
			}
			results[i].Plaintext = plaintext
			results[i].Decrypted = true
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// DecryptMessage decrypts a single message. Unlike DecryptMessages it
// returns the per-message failure as its error.
func (s *Session) DecryptMessage(ctx context.Context, channel *model.Channel, message *model.Message) (Result, error) {
	results, err := s.DecryptMessages(ctx, channel, []*model.Message{message})
	if err != nil {
		return Result{Message: message}, err
	}
	return results[0], results[0].Err
}

func decryptOne(ctx context.Context, group Group, cards *cardCache, m *model.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sender, err := cards.get(ctx, m.SenderID())
	if err != nil {
		return "", err
	}
	return group.Decrypt(ctx, m.Message, sender)
}

// cardCache resolves each sender at most once per batch.
type cardCache struct {
	client Client

	mu      sync.Mutex
	entries map[model.Identity]*cardEntry
}

type cardEntry struct {
	once sync.Once
	card Card
	err  error
}

func newCardCache(client Client) *cardCache {
	return &cardCache{
		client:  client,
		entries: make(map[model.Identity]*cardEntry),
	}
}

func (c *cardCache) get(ctx context.Context, id model.Identity) (Card, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &cardEntry{}
		c.entries[id] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.card, e.err = findCard(ctx, c.client, id)
	})
	return e.card, e.err
}
