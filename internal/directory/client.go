// Package directory is the client side of the backend server: identity
// and messaging tokens, the card directory, the group store and the
// channel proxy.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"e2e_groupchat/internal/dto"
	"e2e_groupchat/internal/model"
)

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: already exists")
	ErrUnauthorized = errors.New("directory: unauthorized")
	ErrForbidden    = errors.New("directory: forbidden")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("directory: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e dto.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e); err == nil {
			apiErr.Message = e.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode %s response: %w", path, err)
	}
	return nil
}

// Token fetches an identity token for id.
func (c *Client) Token(ctx context.Context, id model.Identity) (string, error) {
	var resp dto.IdentityTokenResponse
	if err := c.do(ctx, http.MethodGet, "/virgil/jwt/"+url.PathEscape(id.String()), nil, "", nil, &resp); err != nil {
		return "", err
	}
	return resp.VirgilToken, nil
}

// MessagingToken fetches the messaging backend access token of id.
func (c *Client) MessagingToken(ctx context.Context, id model.Identity) (string, error) {
	var resp dto.AccessTokenResponse
	if err := c.do(ctx, http.MethodGet, "/sendbird/accessToken/"+url.PathEscape(id.String()), nil, "", nil, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// CreateUser registers id with the messaging backend and returns its
// access token.
func (c *Client) CreateUser(ctx context.Context, id model.Identity, nickname string) (string, error) {
	var resp dto.AccessTokenResponse
	req := dto.CreateUserRequest{UserID: id.String(), Nickname: nickname}
	if err := c.do(ctx, http.MethodPost, "/users", nil, "", req, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (c *Client) PublishCard(ctx context.Context, token string, card *model.Card) error {
	return c.do(ctx, http.MethodPut, "/cards/"+url.PathEscape(card.Identity.String()), nil, token, card, nil)
}

// FindCards returns the published cards among ids. Unknown identities are
// absent from the result.
func (c *Client) FindCards(ctx context.Context, ids ...model.Identity) ([]*model.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id.String())
	}

	var resp dto.CardsResponse
	if err := c.do(ctx, http.MethodGet, "/cards", q, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cards, nil
}

func (c *Client) CreateGroup(ctx context.Context, token string, rec *model.GroupRecord) error {
	return c.do(ctx, http.MethodPost, "/groups", nil, token, rec, nil)
}

func (c *Client) GetGroup(ctx context.Context, owner model.Identity, groupID string) (*model.GroupRecord, error) {
	var rec model.GroupRecord
	path := "/groups/" + url.PathEscape(owner.String()) + "/" + url.PathEscape(groupID)
	if err := c.do(ctx, http.MethodGet, path, nil, "", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
