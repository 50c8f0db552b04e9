package model

type (
	// Identity names a user to both the messaging backend and the crypto
	// provider.
	Identity string

	// ChannelMetadata is the canonical shape stored in Channel.Data.
	ChannelMetadata struct {
		OwnerID Identity `json:"ownerId"`
		GroupID string   `json:"groupId"`
	}

	Member struct {
		UserID   Identity `json:"user_id"`
		Nickname string   `json:"nickname"`
	}

	Channel struct {
		URL     string   `json:"channel_url"`
		Name    string   `json:"name"`
		Data    string   `json:"data"`
		Members []Member `json:"members"`
	}
)

func (id Identity) String() string {
	return string(id)
}

// Identities converts plain user ids.
func Identities(ids ...string) []Identity {
	res := make([]Identity, 0, len(ids))
	for _, id := range ids {
		res = append(res, Identity(id))
	}
	return res
}
