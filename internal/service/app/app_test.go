package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2e_groupchat/internal/chat"
	"e2e_groupchat/internal/directory"
	"e2e_groupchat/internal/model"
)

func TestParseCommand(t *testing.T) {
	cmd, ok := parseCommand("  /NEW bob,carol team chat ")
	require.True(t, ok)
	assert.Equal(t, "new", cmd.name)
	assert.Equal(t, []string{"bob,carol", "team", "chat"}, cmd.args)

	_, ok = parseCommand("hello /new")
	assert.False(t, ok)
	_, ok = parseCommand("/")
	assert.False(t, ok)

	assert.Equal(t, model.Identities("bob", "carol"), parseMembers("bob,, carol,"))
}

func TestFormatLine(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)

	assert.Equal(t, "[gray]Mar 01 09:30[-] [yellow]You:[-] hi",
		formatLine(chat.Line{Author: "alice", Mine: true, Text: "hi", CreatedAt: at}))
	assert.Equal(t, "[blue]Channel Admin:[-] frozen",
		formatLine(chat.Line{Author: chat.AdminAuthor, Text: "frozen", CreatedAt: time.UnixMilli(0)}))
	assert.Equal(t, "[green]bob:[-] [red]ENCRYPTED MESSAGE[-]",
		formatLine(chat.Line{Author: "bob", Text: chat.Placeholder, Failed: true}))
	assert.Contains(t,
		formatLine(chat.Line{Author: "bob", Text: "a.txt", File: "https://f/a.txt"}),
		"a.txt <https://f/a.txt>")
}

func TestChannelLabel(t *testing.T) {
	assert.Equal(t, "team", channelLabel(&model.Channel{Name: "team"}))
	assert.Equal(t, "alice, bob", channelLabel(&model.Channel{Members: []model.Member{{UserID: "alice"}, {UserID: "bob"}}}))
}

type fakeAccount struct {
	users   map[model.Identity]string
	created int
}

func (f *fakeAccount) MessagingToken(_ context.Context, id model.Identity) (string, error) {
	if tok, ok := f.users[id]; ok {
		return tok, nil
	}
	return "", &directory.APIError{StatusCode: 404, Message: "not found"}
}

func (f *fakeAccount) CreateUser(_ context.Context, id model.Identity, _ string) (string, error) {
	f.created++
	f.users[id] = "tok"
	return "tok", nil
}

func TestEnsureMessagingUser(t *testing.T) {
	acc := &fakeAccount{users: map[model.Identity]string{}}
	c := &App{account: acc}

	require.NoError(t, c.ensureMessagingUser(context.Background(), "alice", ""))
	require.NoError(t, c.ensureMessagingUser(context.Background(), "alice", ""))
	assert.Equal(t, 1, acc.created)
}
