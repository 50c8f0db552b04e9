package session

import (
	"context"

	"e2e_groupchat/internal/model"
)

type (
	// Card is a provider-native public identity card. Its contents are
	// opaque to the session.
	Card interface {
		Identity() model.Identity
	}

	// Group encrypts for and decrypts from a fixed participant set.
	Group interface {
		Encrypt(ctx context.Context, plaintext string) (string, error)
		Decrypt(ctx context.Context, ciphertext string, sender Card) (string, error)
	}

	// Client is an initialized provider handle bound to one identity.
	Client interface {
		// FindUsers resolves identities to cards in one batched lookup.
		// Identities without a card are absent from the result.
		FindUsers(ctx context.Context, ids ...model.Identity) (map[model.Identity]Card, error)
		CreateGroup(ctx context.Context, groupID string, participants []Card) (Group, error)
		LoadGroup(ctx context.Context, groupID string, owner Card) (Group, error)
	}

	// Provider bootstraps a Client from an identity auth token.
	Provider interface {
		Initialize(ctx context.Context, id model.Identity, token string) (Client, error)
	}

	// TokenSource fetches identity auth tokens from the token issuer.
	TokenSource interface {
		Token(ctx context.Context, id model.Identity) (string, error)
	}
)
