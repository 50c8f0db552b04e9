// Package dto holds the JSON bodies exchanged between the backend server
// and its clients.
package dto

import "e2e_groupchat/internal/model"

type (
	IdentityTokenResponse struct {
		VirgilToken string `json:"virgilToken"`
	}

	AccessTokenResponse struct {
		AccessToken string `json:"accessToken"`
	}

	CreateUserRequest struct {
		UserID   string `json:"userId"`
		Nickname string `json:"nickname"`
	}

	CardsResponse struct {
		Cards []*model.Card `json:"cards"`
	}

	CreateChannelRequest struct {
		Name    string           `json:"name"`
		Members []model.Identity `json:"members"`
		Data    string           `json:"data"`
	}

	ChannelsResponse struct {
		Channels []*model.Channel `json:"channels"`
	}

	SendMessageRequest struct {
		Message string `json:"message"`
		Data    string `json:"data"`
	}

	MessagesResponse struct {
		Messages []*model.Message `json:"messages"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)
