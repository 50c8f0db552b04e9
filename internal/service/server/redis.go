package server

import (
	"context"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/utils/log"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func cardCacheKey(id model.Identity) string {
	return fmt.Sprintf("card: %s", id)
}

// GetCardsFromCache returns the cached cards among ids and the ids that
// missed.
func (s *HttpServer) GetCardsFromCache(ctx context.Context, ids []model.Identity) (map[model.Identity]*model.Card, []model.Identity) {
	found := make(map[model.Identity]*model.Card, len(ids))
	if s.cache == nil {
		return found, ids
	}

	var missed []model.Identity
	for _, id := range ids {
		v, err := s.cache.Get(ctx, cardCacheKey(id))
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn("card cache read failed", zap.Error(err))
			}
			missed = append(missed, id)
			continue
		}

		var c model.Card
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			log.Warn("dropping corrupt cached card", zap.String("identity", id.String()), zap.Error(err))
			s.cache.Del(ctx, cardCacheKey(id))
			missed = append(missed, id)
			continue
		}
		found[id] = &c
	}
	return found, missed
}

func (s *HttpServer) PutCardsToCache(ctx context.Context, cards []*model.Card) {
	if s.cache == nil {
		return
	}
	for _, c := range cards {
		data, _ := json.Marshal(c)
		if err := s.cache.Set(ctx, cardCacheKey(c.Identity), data, s.opts.CardCacheTTL); err != nil {
			log.Warn("card cache write failed", zap.Error(err))
			return
		}
	}
}

func (s *HttpServer) EvictCardFromCache(ctx context.Context, id model.Identity) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cardCacheKey(id)); err != nil {
		log.Warn("card cache evict failed", zap.Error(err))
	}
}
