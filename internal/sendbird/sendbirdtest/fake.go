// Package sendbirdtest provides an in-memory stand-in for the Sendbird
// client.
package sendbirdtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/sendbird"
)

// Fake keeps users, channels and messages in memory. Its errors match the
// sendbird sentinel errors.
type Fake struct {
	mu       sync.Mutex
	users    map[model.Identity]*sendbird.User
	channels map[string]*model.Channel
	messages map[string][]*model.Message
	nextID   int64

	// SendErr, when set, fails every SendMessage.
	SendErr error
}

func New() *Fake {
	return &Fake{
		users:    make(map[model.Identity]*sendbird.User),
		channels: make(map[string]*model.Channel),
		messages: make(map[string][]*model.Message),
	}
}

func notFound(what string) error {
	return &sendbird.APIError{StatusCode: 400, Code: 400201, Message: what + " not found"}
}

func (f *Fake) GetUser(_ context.Context, id model.Identity) (*sendbird.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, notFound("user")
	}
	cp := *u
	return &cp, nil
}

func (f *Fake) CreateUser(_ context.Context, id model.Identity, nickname string) (*sendbird.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; ok {
		return nil, &sendbird.APIError{StatusCode: 400, Code: 400202, Message: "user exists"}
	}
	u := &sendbird.User{UserID: string(id), Nickname: nickname, AccessToken: "sb-" + string(id)}
	f.users[id] = u
	cp := *u
	return &cp, nil
}

// CreateGroupChannel behaves as a distinct channel: the same member set
// yields the existing channel.
func (f *Fake) CreateGroupChannel(_ context.Context, creator model.Identity, name string, members []model.Identity, data string) (*model.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := map[model.Identity]bool{creator: true}
	for _, m := range members {
		set[m] = true
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		if _, ok := f.users[id]; !ok {
			return nil, notFound("user " + string(id))
		}
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	url := "sendbird_group_channel_" + strings.Join(ids, "_")
	if ch, ok := f.channels[url]; ok {
		return cloneChannel(ch), nil
	}

	ch := &model.Channel{URL: url, Name: name, Data: data}
	for _, id := range ids {
		ch.Members = append(ch.Members, model.Member{UserID: model.Identity(id), Nickname: f.users[model.Identity(id)].Nickname})
	}
	f.channels[url] = ch
	return cloneChannel(ch), nil
}

func (f *Fake) GetGroupChannel(_ context.Context, channelURL string) (*model.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelURL]
	if !ok {
		return nil, notFound("channel")
	}
	return cloneChannel(ch), nil
}

func (f *Fake) ListMyGroupChannels(_ context.Context, user model.Identity, limit int) ([]*model.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	urls := make([]string, 0, len(f.channels))
	for url := range f.channels {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var res []*model.Channel
	for _, url := range urls {
		ch := f.channels[url]
		for _, m := range ch.Members {
			if m.UserID == user {
				res = append(res, cloneChannel(ch))
				break
			}
		}
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

func (f *Fake) ListMessages(_ context.Context, channelURL string, limit int) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelURL]; !ok {
		return nil, notFound("channel")
	}
	msgs := f.messages[channelURL]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	res := make([]*model.Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		res[i] = &cp
	}
	return res, nil
}

func (f *Fake) SendMessage(_ context.Context, channelURL string, sender model.Identity, text, data string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	if _, ok := f.channels[channelURL]; !ok {
		return nil, notFound("channel")
	}

	f.nextID++
	nick := ""
	if u, ok := f.users[sender]; ok {
		nick = u.Nickname
	}
	m := &model.Message{
		MessageID:   f.nextID,
		MessageType: model.MessageTypeUser,
		Message:     text,
		Data:        data,
		Sender:      &model.Sender{UserID: sender, Nickname: nick},
		CreatedAt:   time.Now().UnixMilli(),
	}
	f.messages[channelURL] = append(f.messages[channelURL], m)
	cp := *m
	return &cp, nil
}

// AddMessage appends a message as-is, for admin or file messages and
// tampered payloads.
func (f *Fake) AddMessage(channelURL string, m model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.MessageID = f.nextID
	f.messages[channelURL] = append(f.messages[channelURL], &m)
}

func cloneChannel(ch *model.Channel) *model.Channel {
	cp := *ch
	cp.Members = append([]model.Member(nil), ch.Members...)
	return &cp
}
