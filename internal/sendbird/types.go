package sendbird

import "e2e_groupchat/internal/model"

const (
	typeUser  = "MESG"
	typeFile  = "FILE"
	typeAdmin = "ADMM"
)

type (
	User struct {
		UserID      string `json:"user_id"`
		Nickname    string `json:"nickname"`
		ProfileURL  string `json:"profile_url"`
		AccessToken string `json:"access_token"`
	}

	createUserRequest struct {
		UserID           string `json:"user_id"`
		Nickname         string `json:"nickname"`
		ProfileURL       string `json:"profile_url"`
		IssueAccessToken bool   `json:"issue_access_token"`
	}

	createChannelRequest struct {
		UserIDs    []string `json:"user_ids"`
		Name       string   `json:"name,omitempty"`
		IsDistinct bool     `json:"is_distinct"`
		Data       string   `json:"data,omitempty"`
		InviterID  string   `json:"inviter_id,omitempty"`
	}

	sendMessageRequest struct {
		MessageType string `json:"message_type"`
		UserID      string `json:"user_id"`
		Message     string `json:"message"`
		Data        string `json:"data,omitempty"`
	}

	member struct {
		UserID   string `json:"user_id"`
		Nickname string `json:"nickname"`
	}

	groupChannel struct {
		ChannelURL string   `json:"channel_url"`
		Name       string   `json:"name"`
		Data       string   `json:"data"`
		Members    []member `json:"members"`
	}

	message struct {
		MessageID int64  `json:"message_id"`
		Type      string `json:"type"`
		Message   string `json:"message"`
		Data      string `json:"data"`
		CreatedAt int64  `json:"created_at"`
		User      *struct {
			UserID   string `json:"user_id"`
			Nickname string `json:"nickname"`
		} `json:"user"`
		File *struct {
			URL  string `json:"url"`
			Name string `json:"name"`
		} `json:"file"`
	}
)

func (ch *groupChannel) toModel() *model.Channel {
	res := &model.Channel{
		URL:  ch.ChannelURL,
		Name: ch.Name,
		Data: ch.Data,
	}
	for _, m := range ch.Members {
		res.Members = append(res.Members, model.Member{UserID: model.Identity(m.UserID), Nickname: m.Nickname})
	}
	return res
}

func (m *message) toModel() *model.Message {
	res := &model.Message{
		MessageID: m.MessageID,
		Message:   m.Message,
		Data:      m.Data,
		CreatedAt: m.CreatedAt,
	}

	switch m.Type {
	case typeFile:
		res.MessageType = model.MessageTypeFile
	case typeAdmin:
		res.MessageType = model.MessageTypeAdmin
	default:
		res.MessageType = model.MessageTypeUser
	}

	if m.User != nil && m.User.UserID != "" {
		res.Sender = &model.Sender{UserID: model.Identity(m.User.UserID), Nickname: m.User.Nickname}
	}
	if m.File != nil {
		res.Name = m.File.Name
		res.FileURL = m.File.URL
	}
	return res
}
