// Package memory holds in-process card and group stores for development
// servers and tests.
package memory

import (
	"context"
	"sync"

	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/repository"
)

type CardStore struct {
	mu    sync.RWMutex
	cards map[model.Identity]model.Card
}

func NewCardStore() *CardStore {
	return &CardStore{cards: make(map[model.Identity]model.Card)}
}

func (s *CardStore) Upsert(_ context.Context, card *model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.Identity] = *card
	return nil
}

func (s *CardStore) Find(_ context.Context, ids []model.Identity) ([]*model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*model.Card
	for _, id := range ids {
		if c, ok := s.cards[id]; ok {
			res = append(res, &c)
		}
	}
	return res, nil
}

type groupKey struct {
	owner model.Identity
	id    string
}

type GroupStore struct {
	mu     sync.RWMutex
	groups map[groupKey]model.GroupRecord
}

func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[groupKey]model.GroupRecord)}
}

func (s *GroupStore) Create(_ context.Context, rec *model.GroupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := groupKey{owner: rec.OwnerID, id: rec.GroupID}
	if _, ok := s.groups[k]; ok {
		return repository.ErrDuplicate
	}
	s.groups[k] = *rec
	return nil
}

func (s *GroupStore) Get(_ context.Context, owner model.Identity, groupID string) (*model.GroupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.groups[groupKey{owner: owner, id: groupID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}
