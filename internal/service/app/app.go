package app

import (
	"context"
	"e2e_groupchat/internal/chat"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/session"
	"e2e_groupchat/internal/utils/log"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const helpText = "/new <user,user> [name]  create a channel   /refresh  reload channels   /help"

type (
	Options struct {
		PageSize int
		// Refresh is how often the open conversation is reloaded.
		Refresh time.Duration
	}

	App struct {
		app      *tview.Application
		layout   tview.Primitive
		channels *tview.List
		chatbox  *tview.TextView
		input    *tview.InputField
		status   *tview.TextView

		session *session.Session
		chat    *chat.Controller
		account Account
		opts    Options

		mu      sync.Mutex
		list    []*model.Channel
		current *model.Channel
	}
)

func NewApp(sess *session.Session, ctrl *chat.Controller, account Account, opts Options) *App {
	if opts.PageSize <= 0 {
		opts.PageSize = chat.DefaultPageSize
	}
	if opts.Refresh <= 0 {
		opts.Refresh = 3 * time.Second
	}
	return &App{
		app:     tview.NewApplication(),
		session: sess,
		chat:    ctrl,
		account: account,
		opts:    opts,
	}
}

// Run blocks until the UI exits or ctx is done. Input stays disabled until
// the session has bootstrapped id.
func (c *App) Run(ctx context.Context, id model.Identity, nickname string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.build(ctx, id)
	go c.bootstrap(ctx, id, nickname)
	go c.poll(ctx)
	go func() {
		<-ctx.Done()
		c.app.Stop()
	}()

	return c.app.SetRoot(c.layout, true).SetFocus(c.input).Run()
}

func (c *App) build(ctx context.Context, id model.Identity) {
	c.channels = tview.NewList().ShowSecondaryText(false)
	c.channels.SetBorder(true).SetTitle(" Channels ")
	c.channels.SetSelectedFunc(func(i int, _ string, _ string, _ rune) {
		c.mu.Lock()
		if i >= len(c.list) {
			c.mu.Unlock()
			return
		}
		ch := c.list[i]
		c.mu.Unlock()

		c.app.SetFocus(c.input)
		go c.open(ctx, ch)
	})

	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", id))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")
	c.input.SetDisabled(true)
	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.input.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		c.input.SetText("")
		go c.handleInput(ctx, text)
	})

	c.status = tview.NewTextView().SetDynamicColors(true)

	c.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyTab {
			if c.input.HasFocus() {
				c.app.SetFocus(c.channels)
			} else {
				c.app.SetFocus(c.input)
			}
			return nil
		}
		return event
	})

	conversation := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true).
		AddItem(c.status, 1, 0, false)

	c.layout = tview.NewFlex().
		AddItem(c.channels, 30, 0, false).
		AddItem(conversation, 0, 1, true)
}

func (c *App) setStatus(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.app.QueueUpdateDraw(func() {
		c.status.SetText(msg)
	})
}

func (c *App) fail(what string, err error) {
	log.Error(what+" failed", zap.Error(err))
	c.setStatus("[red]%s failed:[-] %s", what, tview.Escape(err.Error()))
}

func (c *App) bootstrap(ctx context.Context, id model.Identity, nickname string) {
	c.setStatus("connecting as %s ...", tview.Escape(id.String()))

	if err := c.ensureMessagingUser(ctx, id, nickname); err != nil {
		c.fail("register", err)
		return
	}
	if err := c.session.SetIdentity(ctx, id); err != nil {
		c.fail("bootstrap", err)
		return
	}

	c.app.QueueUpdateDraw(func() {
		c.input.SetDisabled(false)
		c.status.SetText(helpText)
	})
	c.reloadChannels(ctx)
}

func (c *App) reloadChannels(ctx context.Context) {
	channels, err := c.chat.Channels(ctx)
	if err != nil {
		c.fail("list channels", err)
		return
	}

	c.mu.Lock()
	c.list = channels
	c.mu.Unlock()

	c.app.QueueUpdateDraw(func() {
		c.channels.Clear()
		for _, ch := range channels {
			c.channels.AddItem(tview.Escape(channelLabel(ch)), "", 0, nil)
		}
	})
}

func (c *App) open(ctx context.Context, ch *model.Channel) {
	c.mu.Lock()
	c.current = ch
	c.mu.Unlock()

	c.app.QueueUpdateDraw(func() {
		c.chatbox.SetTitle(fmt.Sprintf(" %s ", tview.Escape(channelLabel(ch))))
	})
	c.loadConversation(ctx, ch)
}

func (c *App) loadConversation(ctx context.Context, ch *model.Channel) {
	lines, err := c.chat.Conversation(ctx, ch, c.opts.PageSize)
	if err != nil {
		c.fail("load conversation", err)
		return
	}

	c.app.QueueUpdateDraw(func() {
		c.mu.Lock()
		stale := c.current != ch
		c.mu.Unlock()
		if stale {
			return
		}

		c.chatbox.Clear()
		for _, l := range lines {
			fmt.Fprintln(c.chatbox, formatLine(l))
		}
		c.chatbox.ScrollToEnd()
	})
}

// poll reloads the open conversation; messages only arrive through the
// messaging backend's history.
func (c *App) poll(ctx context.Context) {
	ticker := time.NewTicker(c.opts.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		ch := c.current
		c.mu.Unlock()
		if ch != nil && c.session.Initialized() {
			c.loadConversation(ctx, ch)
		}
	}
}

func (c *App) handleInput(ctx context.Context, text string) {
	if cmd, ok := parseCommand(text); ok {
		c.runCommand(ctx, cmd)
		return
	}

	c.mu.Lock()
	ch := c.current
	c.mu.Unlock()
	if ch == nil {
		c.setStatus("[yellow]select a channel first (Tab)[-]")
		return
	}

	line, err := c.chat.Send(ctx, ch, text)
	if err != nil {
		c.fail("send", err)
		return
	}

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintln(c.chatbox, formatLine(*line))
		c.chatbox.ScrollToEnd()
	})
}

func (c *App) runCommand(ctx context.Context, cmd command) {
	switch cmd.name {
	case "new":
		if len(cmd.args) == 0 {
			c.setStatus("[yellow]usage: /new <user,user> [name][-]")
			return
		}
		members := parseMembers(cmd.args[0])
		name := strings.Join(cmd.args[1:], " ")

		ch, err := c.chat.CreateChannel(ctx, name, members)
		if err != nil {
			c.fail("create channel", err)
			return
		}
		c.reloadChannels(ctx)
		c.open(ctx, ch)
	case "refresh":
		c.reloadChannels(ctx)
	default:
		c.setStatus(helpText)
	}
}

func channelLabel(ch *model.Channel) string {
	if ch.Name != "" {
		return ch.Name
	}
	ids := make([]string, 0, len(ch.Members))
	for _, m := range ch.Members {
		ids = append(ids, m.UserID.String())
	}
	return strings.Join(ids, ", ")
}

func formatLine(l chat.Line) string {
	author, color := l.Author, "green"
	switch {
	case l.Mine:
		author, color = "You", "yellow"
	case l.Author == chat.AdminAuthor:
		color = "blue"
	}

	text := tview.Escape(l.Text)
	switch {
	case l.Failed:
		text = "[red]" + text + "[-]"
	case l.File != "":
		text = fmt.Sprintf("%s <%s>", text, tview.Escape(l.File))
	}

	ts := ""
	if l.CreatedAt.Unix() > 0 {
		ts = "[gray]" + l.CreatedAt.Format("Jan 02 15:04") + "[-] "
	}
	return fmt.Sprintf("%s[%s]%s:[-] %s", ts, color, tview.Escape(author), text)
}
