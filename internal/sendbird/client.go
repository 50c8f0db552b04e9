// Package sendbird is a client for the Sendbird Platform API, the messaging
// backend that stores channels and messages. It only ever sees ciphertext
// and opaque metadata.
package sendbird

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/utils/log"
)

var (
	ErrNotFound      = errors.New("sendbird: resource not found")
	ErrAlreadyExists = errors.New("sendbird: resource already exists")
	ErrUnauthorized  = errors.New("sendbird: unauthorized")
)

// Vendor error codes, see the Platform API error code table.
const (
	codeUnauthorizedRequest = 400108
	codeResourceNotFound    = 400201
	codeResourceExists      = 400202
	codeInvalidAPIToken     = 400401
)

// APIError is a failed Platform API call. It matches ErrNotFound,
// ErrAlreadyExists and ErrUnauthorized with errors.Is.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sendbird: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == codeResourceNotFound || e.StatusCode == http.StatusNotFound
	case ErrAlreadyExists:
		return e.Code == codeResourceExists
	case ErrUnauthorized:
		return e.Code == codeUnauthorizedRequest || e.Code == codeInvalidAPIToken ||
			e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// New returns a client for the application appID.
func New(appID, apiToken string, httpClient *http.Client) *Client {
	return NewWithBaseURL(fmt.Sprintf("https://api-%s.sendbird.com/v3", appID), apiToken, httpClient)
}

func NewWithBaseURL(baseURL, apiToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http:     httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Token", c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sendbird: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var vendor struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&vendor); err == nil {
			apiErr.Code = vendor.Code
			apiErr.Message = vendor.Message
		}
		log.Debug("sendbird call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", apiErr.Code))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sendbird: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) GetUser(ctx context.Context, id model.Identity) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(string(id)), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser registers a user and asks the vendor to issue an access token
// for it.
func (c *Client) CreateUser(ctx context.Context, id model.Identity, nickname string) (*User, error) {
	body := createUserRequest{
		UserID:           string(id),
		Nickname:         nickname,
		ProfileURL:       "",
		IssueAccessToken: true,
	}
	var u User
	if err := c.do(ctx, http.MethodPost, "/users", nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateGroupChannel creates a distinct group channel between creator and
// members carrying data as its opaque metadata.
func (c *Client) CreateGroupChannel(ctx context.Context, creator model.Identity, name string, members []model.Identity, data string) (*model.Channel, error) {
	userIDs := []string{string(creator)}
	for _, m := range members {
		if m != creator {
			userIDs = append(userIDs, string(m))
		}
	}

	body := createChannelRequest{
		UserIDs:    userIDs,
		Name:       name,
		IsDistinct: true,
		Data:       data,
		InviterID:  string(creator),
	}
	var ch groupChannel
	if err := c.do(ctx, http.MethodPost, "/group_channels", nil, body, &ch); err != nil {
		return nil, err
	}
	return ch.toModel(), nil
}

func (c *Client) GetGroupChannel(ctx context.Context, channelURL string) (*model.Channel, error) {
	query := url.Values{"show_member": []string{"true"}}
	var ch groupChannel
	if err := c.do(ctx, http.MethodGet, "/group_channels/"+url.PathEscape(channelURL), query, nil, &ch); err != nil {
		return nil, err
	}
	return ch.toModel(), nil
}

func (c *Client) ListMyGroupChannels(ctx context.Context, user model.Identity, limit int) ([]*model.Channel, error) {
	query := url.Values{
		"show_member": []string{"true"},
		"limit":       []string{strconv.Itoa(limit)},
		"order":       []string{"latest_last_message"},
	}
	var resp struct {
		Channels []groupChannel `json:"channels"`
	}
	path := "/users/" + url.PathEscape(string(user)) + "/my_group_channels"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}

	res := make([]*model.Channel, 0, len(resp.Channels))
	for i := range resp.Channels {
		res = append(res, resp.Channels[i].toModel())
	}
	return res, nil
}

// ListMessages returns up to limit of the channel's most recent messages,
// oldest first.
func (c *Client) ListMessages(ctx context.Context, channelURL string, limit int) ([]*model.Message, error) {
	query := url.Values{
		"message_ts": []string{strconv.FormatInt(time.Now().UnixMilli(), 10)},
		"prev_limit": []string{strconv.Itoa(limit)},
		"next_limit": []string{"0"},
		"include":    []string{"true"},
	}
	var resp struct {
		Messages []message `json:"messages"`
	}
	path := "/group_channels/" + url.PathEscape(channelURL) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}

	res := make([]*model.Message, 0, len(resp.Messages))
	for i := range resp.Messages {
		res = append(res, resp.Messages[i].toModel())
	}
	return res, nil
}

func (c *Client) SendMessage(ctx context.Context, channelURL string, sender model.Identity, text, data string) (*model.Message, error) {
	body := sendMessageRequest{
		MessageType: typeUser,
		UserID:      string(sender),
		Message:     text,
		Data:        data,
	}
	var m message
	path := "/group_channels/" + url.PathEscape(channelURL) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &m); err != nil {
		return nil, err
	}
	return m.toModel(), nil
}
