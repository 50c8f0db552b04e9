package server

import (
	"e2e_groupchat/internal/dto"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/sendbird"
	"e2e_groupchat/internal/utils/log"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *HttpServer) GetIdentityToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := model.Identity(mux.Vars(r)["userId"])

		tok, err := s.issuer.Issue(userID)
		if err != nil {
			log.Error("issue identity token failed", zap.String("user_id", userID.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "issue identity token failed")
			return
		}

		s.metrics.tokenIssued("identity")
		writeJSON(w, http.StatusOK, dto.IdentityTokenResponse{VirgilToken: tok})
	}
}

func (s *HttpServer) GetAccessToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := model.Identity(mux.Vars(r)["userId"])

		user, err := s.messaging.GetUser(ctx, userID)
		if err != nil {
			s.writeMessagingError(w, "get messaging user", err)
			return
		}
		if user.AccessToken == "" {
			log.Warn("messaging user has no access token", zap.String("user_id", userID.String()))
			writeError(w, http.StatusBadGateway, "messaging backend issued no access token")
			return
		}

		s.metrics.tokenIssued("messaging")
		writeJSON(w, http.StatusOK, dto.AccessTokenResponse{AccessToken: user.AccessToken})
	}
}

func (s *HttpServer) CreateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req dto.CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId cannot be empty")
			return
		}
		if req.Nickname == "" {
			req.Nickname = req.UserID
		}

		user, err := s.messaging.CreateUser(ctx, model.Identity(req.UserID), req.Nickname)
		if err != nil {
			s.writeMessagingError(w, "create messaging user", err)
			return
		}

		log.Info("messaging user created", zap.String("user_id", req.UserID))
		s.metrics.tokenIssued("messaging")
		writeJSON(w, http.StatusOK, dto.AccessTokenResponse{AccessToken: user.AccessToken})
	}
}

// writeMessagingError maps vendor failures to our own status codes; the
// vendor's payload is logged, never forwarded.
func (s *HttpServer) writeMessagingError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, sendbird.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, sendbird.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	default:
		log.Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "messaging backend unavailable")
	}
}
