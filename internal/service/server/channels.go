package server

import (
	"e2e_groupchat/internal/dto"
	"e2e_groupchat/internal/model"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const (
	defaultPageLimit = 30
	maxPageLimit     = 100
)

func pageLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultPageLimit
	}
	return min(n, maxPageLimit)
}

func isMember(ch *model.Channel, id model.Identity) bool {
	for _, m := range ch.Members {
		if m.UserID == id {
			return true
		}
	}
	return false
}

// memberChannel loads the channel named in the path and checks that the
// caller belongs to it. It writes the error response itself.
func (s *HttpServer) memberChannel(w http.ResponseWriter, r *http.Request) (*model.Channel, bool) {
	ch, err := s.messaging.GetGroupChannel(r.Context(), mux.Vars(r)["channelUrl"])
	if err != nil {
		s.writeMessagingError(w, "get channel", err)
		return nil, false
	}
	if !isMember(ch, requestIdentity(r)) {
		writeError(w, http.StatusForbidden, "not a channel member")
		return nil, false
	}
	return ch, true
}

func (s *HttpServer) CreateChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateChannelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(req.Members) == 0 {
			writeError(w, http.StatusBadRequest, "members cannot be empty")
			return
		}

		ch, err := s.messaging.CreateGroupChannel(r.Context(), requestIdentity(r), req.Name, req.Members, req.Data)
		if err != nil {
			s.writeMessagingError(w, "create channel", err)
			return
		}
		writeJSON(w, http.StatusCreated, ch)
	}
}

func (s *HttpServer) ListChannels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels, err := s.messaging.ListMyGroupChannels(r.Context(), requestIdentity(r), pageLimit(r))
		if err != nil {
			s.writeMessagingError(w, "list channels", err)
			return
		}
		writeJSON(w, http.StatusOK, dto.ChannelsResponse{Channels: channels})
	}
}

func (s *HttpServer) GetChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := s.memberChannel(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, ch)
	}
}

func (s *HttpServer) ListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := s.memberChannel(w, r)
		if !ok {
			return
		}

		messages, err := s.messaging.ListMessages(r.Context(), ch.URL, pageLimit(r))
		if err != nil {
			s.writeMessagingError(w, "list messages", err)
			return
		}
		writeJSON(w, http.StatusOK, dto.MessagesResponse{Messages: messages})
	}
}

func (s *HttpServer) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := s.memberChannel(w, r)
		if !ok {
			return
		}

		var req dto.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "message cannot be empty")
			return
		}

		m, err := s.messaging.SendMessage(r.Context(), ch.URL, requestIdentity(r), req.Message, req.Data)
		if err != nil {
			s.writeMessagingError(w, "send message", err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}
