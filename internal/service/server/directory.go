package server

import (
	"crypto/ed25519"
	"e2e_groupchat/internal/dto"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/repository"
	"e2e_groupchat/internal/utils/log"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const x25519KeySize = 32

func (s *HttpServer) PublishCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := model.Identity(mux.Vars(r)["userId"])

		if requestIdentity(r) != userID {
			writeError(w, http.StatusForbidden, "token does not belong to this user")
			return
		}

		var card model.Card
		if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if card.Identity != "" && card.Identity != userID {
			writeError(w, http.StatusBadRequest, "card identity does not match path")
			return
		}
		if len(card.DHPub) != x25519KeySize || len(card.SignPub) != ed25519.PublicKeySize {
			writeError(w, http.StatusBadRequest, "card keys are malformed")
			return
		}
		card.Identity = userID
		if card.CreatedAt.IsZero() {
			card.CreatedAt = time.Now().UTC()
		}

		if err := s.cards.Upsert(ctx, &card); err != nil {
			log.Error("publish card failed", zap.String("user_id", userID.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "publish card failed")
			return
		}
		s.EvictCardFromCache(ctx, userID)

		log.Info("card published", zap.String("user_id", userID.String()))
		w.WriteHeader(http.StatusNoContent)
	}
}

// FindCards resolves every ?id= to its card. Unknown identities are left
// out of the response.
func (s *HttpServer) FindCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var ids []model.Identity
		seen := make(map[model.Identity]bool)
		for _, v := range r.URL.Query()["id"] {
			id := model.Identity(v)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			writeError(w, http.StatusBadRequest, "at least one id is required")
			return
		}
		if len(ids) > s.opts.MaxLookup {
			writeError(w, http.StatusBadRequest, "too many ids")
			return
		}

		found, missed := s.GetCardsFromCache(ctx, ids)
		if len(missed) > 0 {
			cards, err := s.cards.Find(ctx, missed)
			if err != nil {
				log.Error("find cards failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "find cards failed")
				return
			}
			s.PutCardsToCache(ctx, cards)
			for _, c := range cards {
				found[c.Identity] = c
			}
		}

		resp := dto.CardsResponse{Cards: make([]*model.Card, 0, len(found))}
		for _, id := range ids {
			if c, ok := found[id]; ok {
				resp.Cards = append(resp.Cards, c)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *HttpServer) CreateGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var rec model.GroupRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if rec.OwnerID != requestIdentity(r) {
			writeError(w, http.StatusForbidden, "only the owner can create its group")
			return
		}
		if rec.GroupID == "" || len(rec.Participants) == 0 || len(rec.Keys) != len(rec.Participants) || len(rec.Signature) == 0 {
			writeError(w, http.StatusBadRequest, "group record is incomplete")
			return
		}

		err := s.groups.Create(ctx, &rec)
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusConflict, "group already exists")
			return
		}
		if err != nil {
			log.Error("create group failed", zap.String("group_id", rec.GroupID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create group failed")
			return
		}

		log.Info("group created",
			zap.String("owner_id", rec.OwnerID.String()),
			zap.String("group_id", rec.GroupID),
			zap.Int("participants", len(rec.Participants)))
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *HttpServer) GetGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		vars := mux.Vars(r)

		rec, err := s.groups.Get(ctx, model.Identity(vars["ownerId"]), vars["groupId"])
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "group does not exist")
			return
		}
		if err != nil {
			log.Error("get group failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get group failed")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
