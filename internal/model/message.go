package model

type MessageType string

const (
	MessageTypeUser  MessageType = "user"
	MessageTypeFile  MessageType = "file"
	MessageTypeAdmin MessageType = "admin"
)

type (
	// MessageMetadata is the shape stored in Message.Data.
	MessageMetadata struct {
		IsEncrypted bool `json:"isEncrypted"`
	}

	Sender struct {
		UserID   Identity `json:"user_id"`
		Nickname string   `json:"nickname"`
	}

	Message struct {
		MessageID   int64       `json:"message_id"`
		MessageType MessageType `json:"type"`
		Message     string      `json:"message"`
		Data        string      `json:"data"`
		Sender      *Sender     `json:"user,omitempty"`
		Name        string      `json:"name,omitempty"`
		FileURL     string      `json:"url,omitempty"`
		CreatedAt   int64       `json:"created_at"`
	}
)

// SenderID returns the sender's identity, or "" for messages without one
// (admin messages).
func (m *Message) SenderID() Identity {
	if m.Sender == nil {
		return ""
	}
	return m.Sender.UserID
}
