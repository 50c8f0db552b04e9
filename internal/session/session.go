package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"e2e_groupchat/internal/metadata"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/utils/log"
)

const (
	DefaultDecryptConcurrency = 8
	DefaultBootstrapTimeout   = 30 * time.Second
)

type (
	Options struct {
		// DecryptConcurrency bounds the per-batch decrypt fan-out.
		DecryptConcurrency int
		// BootstrapTimeout bounds one bootstrap attempt. A caller giving up
		// early does not cancel the attempt for the others.
		BootstrapTimeout time.Duration
	}

	// Session owns the local crypto identity and mediates every group
	// operation. It starts uninitialized; SetIdentity bootstraps it once.
	Session struct {
		provider Provider
		tokens   TokenSource
		opts     Options

		mu       sync.RWMutex
		client   Client
		identity model.Identity
		pending  model.Identity

		bootstrap singleflight.Group
	}
)

func New(provider Provider, tokens TokenSource, opts Options) *Session {
	if opts.DecryptConcurrency <= 0 {
		opts.DecryptConcurrency = DefaultDecryptConcurrency
	}
	if opts.BootstrapTimeout <= 0 {
		opts.BootstrapTimeout = DefaultBootstrapTimeout
	}
	return &Session{
		provider: provider,
		tokens:   tokens,
		opts:     opts,
	}
}

func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// Identity returns the bootstrapped identity, or "" before bootstrap.
func (s *Session) Identity() model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return ""
	}
	return s.identity
}

// SetIdentity bootstraps the session for id. It returns immediately when
// the session is already bootstrapped as id; concurrent calls for the same
// id share a single bootstrap and its outcome. A session that is
// bootstrapped, or bootstrapping, as another identity rejects the call with
// ErrIdentityChanged.
func (s *Session) SetIdentity(ctx context.Context, id model.Identity) error {
	if id == "" {
		return ErrEmptyIdentity
	}

	s.mu.Lock()
	switch {
	case s.client != nil && s.identity == id:
		s.mu.Unlock()
		return nil
	case s.client != nil:
		current := s.identity
		s.mu.Unlock()
		return fmt.Errorf("%w: bootstrapped as %q", ErrIdentityChanged, current)
	case s.pending != "" && s.pending != id:
		pending := s.pending
		s.mu.Unlock()
		return fmt.Errorf("%w: bootstrap for %q in flight", ErrIdentityChanged, pending)
	}
	s.pending = id
	ch := s.bootstrap.DoChan(string(id), func() (any, error) {
		return nil, s.runBootstrap(context.WithoutCancel(ctx), id)
	})
	s.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) runBootstrap(ctx context.Context, id model.Identity) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.BootstrapTimeout)
	defer cancel()

	// The flight stays registered until this returns, so same-identity
	// callers keep joining it; a later call starts a fresh attempt.
	defer func() {
		if err == nil {
			return
		}
		log.Error("crypto bootstrap failed", zap.String("identity", id.String()), zap.Error(err))
		s.mu.Lock()
		s.pending = ""
		s.mu.Unlock()
	}()

	token, err := s.tokens.Token(ctx, id)
	if err != nil {
		return &BootstrapError{Identity: id, Stage: "fetch token", Err: err}
	}
	if token == "" {
		return &BootstrapError{Identity: id, Stage: "fetch token", Err: fmt.Errorf("token issuer returned an empty token")}
	}

	client, err := s.provider.Initialize(ctx, id, token)
	if err != nil {
		return &BootstrapError{Identity: id, Stage: "initialize provider", Err: err}
	}

	s.mu.Lock()
	s.client = client
	s.identity = id
	s.pending = ""
	s.mu.Unlock()

	log.Info("crypto session initialized", zap.String("identity", id.String()))
	return nil
}

func (s *Session) activeClient() (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotInitialized
	}
	return s.client, nil
}

// CreateGroup creates the crypto group for a new channel. The caller must
// persist {ownerId: Identity(), groupId: groupID} in the channel's data so
// other participants can load the same group.
func (s *Session) CreateGroup(ctx context.Context, groupID string, participants []model.Identity) error {
	client, err := s.activeClient()
	if err != nil {
		return err
	}
	if groupID == "" {
		return &GroupCreationError{Err: fmt.Errorf("group id is empty")}
	}

	ids := dedupe(participants)
	cards, err := client.FindUsers(ctx, ids...)
	if err != nil {
		return &GroupCreationError{GroupID: groupID, Err: fmt.Errorf("find participants: %w", err)}
	}

	list := make([]Card, 0, len(ids))
	for _, id := range ids {
		card, ok := cards[id]
		if !ok {
			return &GroupCreationError{GroupID: groupID, Err: fmt.Errorf("%w: %s", ErrCardNotFound, id)}
		}
		list = append(list, card)
	}

	if _, err := client.CreateGroup(ctx, groupID, list); err != nil {
		return &GroupCreationError{GroupID: groupID, Err: err}
	}

	log.Debug("crypto group created", zap.String("group_id", groupID), zap.Int("participants", len(list)))
	return nil
}

// LoadGroup resolves the group named by channel's data.
func (s *Session) LoadGroup(ctx context.Context, channel *model.Channel) (Group, error) {
	client, err := s.activeClient()
	if err != nil {
		return nil, err
	}
	return s.loadGroup(ctx, client, channel)
}

func (s *Session) loadGroup(ctx context.Context, client Client, channel *model.Channel) (Group, error) {
	md, err := metadata.Decode(channel.Data)
	if err != nil {
		return nil, err
	}

	owner, err := findCard(ctx, client, md.OwnerID)
	if err != nil {
		return nil, &GroupLoadError{OwnerID: md.OwnerID, GroupID: md.GroupID, Err: fmt.Errorf("find owner: %w", err)}
	}

	group, err := client.LoadGroup(ctx, md.GroupID, owner)
	if err != nil {
		return nil, &GroupLoadError{OwnerID: md.OwnerID, GroupID: md.GroupID, Err: err}
	}
	return group, nil
}

// EncryptMessage encrypts plaintext for channel's group. The caller tags
// the sent message with metadata.EncodeMessageData(true).
func (s *Session) EncryptMessage(ctx context.Context, channel *model.Channel, plaintext string) (string, error) {
	group, err := s.LoadGroup(ctx, channel)
	if err != nil {
		return "", err
	}

	ciphertext, err := group.Encrypt(ctx, plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt message: %w", err)
	}
	return ciphertext, nil
}

func findCard(ctx context.Context, client Client, id model.Identity) (Card, error) {
	cards, err := client.FindUsers(ctx, id)
	if err != nil {
		return nil, err
	}
	card, ok := cards[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return card, nil
}

func dedupe(ids []model.Identity) []model.Identity {
	seen := make(map[model.Identity]struct{}, len(ids))
	res := make([]model.Identity, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	return res
}
