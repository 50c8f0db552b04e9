package directory

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"e2e_groupchat/internal/dto"
	"e2e_groupchat/internal/model"
)

// Channels reaches the messaging backend through the server's channel
// proxy, authenticated as one identity. The identity token is fetched on
// first use and refetched once when the server rejects it.
type Channels struct {
	c    *Client
	self model.Identity

	mu    sync.Mutex
	token string
}

func (c *Client) Channels(self model.Identity) *Channels {
	return &Channels{c: c, self: self}
}

func (ch *Channels) Self() model.Identity {
	return ch.self
}

func (ch *Channels) bearer(ctx context.Context, refresh bool) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.token != "" && !refresh {
		return ch.token, nil
	}
	tok, err := ch.c.Token(ctx, ch.self)
	if err != nil {
		return "", err
	}
	ch.token = tok
	return tok, nil
}

func (ch *Channels) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	tok, err := ch.bearer(ctx, false)
	if err != nil {
		return err
	}
	err = ch.c.do(ctx, method, path, query, tok, body, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	if tok, err = ch.bearer(ctx, true); err != nil {
		return err
	}
	return ch.c.do(ctx, method, path, query, tok, body, out)
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// CreateChannel creates a distinct group channel of self and members.
func (ch *Channels) CreateChannel(ctx context.Context, name string, members []model.Identity, data string) (*model.Channel, error) {
	var res model.Channel
	req := dto.CreateChannelRequest{Name: name, Members: members, Data: data}
	if err := ch.do(ctx, http.MethodPost, "/channels", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (ch *Channels) ListChannels(ctx context.Context, limit int) ([]*model.Channel, error) {
	var res dto.ChannelsResponse
	if err := ch.do(ctx, http.MethodGet, "/channels", limitQuery(limit), nil, &res); err != nil {
		return nil, err
	}
	return res.Channels, nil
}

func (ch *Channels) GetChannel(ctx context.Context, channelURL string) (*model.Channel, error) {
	var res model.Channel
	if err := ch.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelURL), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (ch *Channels) ListMessages(ctx context.Context, channelURL string, limit int) ([]*model.Message, error) {
	var res dto.MessagesResponse
	path := "/channels/" + url.PathEscape(channelURL) + "/messages"
	if err := ch.do(ctx, http.MethodGet, path, limitQuery(limit), nil, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

func (ch *Channels) SendMessage(ctx context.Context, channelURL, text, data string) (*model.Message, error) {
	var res model.Message
	path := "/channels/" + url.PathEscape(channelURL) + "/messages"
	req := dto.SendMessageRequest{Message: text, Data: data}
	if err := ch.do(ctx, http.MethodPost, path, nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
