package server

import (
	"context"
	"e2e_groupchat/internal/dto"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/utils/log"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ctxKey int

const identityKey ctxKey = iota

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// authenticated requires a valid identity token in the Authorization
// header and exposes its identity through requestIdentity.
func (s *HttpServer) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		id, err := s.issuer.Verify(raw)
		if err != nil {
			log.Debug("rejected identity token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	}
}

func requestIdentity(r *http.Request) model.Identity {
	id, _ := r.Context().Value(identityKey).(model.Identity)
	return id
}
