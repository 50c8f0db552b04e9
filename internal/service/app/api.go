package app

import (
	"context"
	"e2e_groupchat/internal/directory"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/utils/log"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Account registers the local identity with the messaging backend.
type Account interface {
	MessagingToken(ctx context.Context, id model.Identity) (string, error)
	CreateUser(ctx context.Context, id model.Identity, nickname string) (string, error)
}

// ensureMessagingUser creates the messaging user of id on first run.
func (c *App) ensureMessagingUser(ctx context.Context, id model.Identity, nickname string) error {
	_, err := c.account.MessagingToken(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("get messaging token: %w", err)
	}

	if nickname == "" {
		nickname = id.String()
	}
	if _, err := c.account.CreateUser(ctx, id, nickname); err != nil && !errors.Is(err, directory.ErrConflict) {
		return fmt.Errorf("create messaging user: %w", err)
	}
	log.Info("messaging user created", zap.String("user_id", id.String()))
	return nil
}

type command struct {
	name string
	args []string
}

// parseCommand splits "/new bob,carol" style input. Plain text is not a
// command.
func parseCommand(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{}, false
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return command{}, false
	}
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

func parseMembers(arg string) []model.Identity {
	var ids []model.Identity
	for _, p := range strings.Split(arg, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, model.Identity(p))
		}
	}
	return ids
}
