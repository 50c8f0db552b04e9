package card

import (
	"context"
	"e2e_groupchat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	CardRepo struct {
		collection *mongo.Collection
	}
)

func NewCardRepo(db *mongo.Database) *CardRepo {
	return &CardRepo{
		collection: db.Collection("cards"),
	}
}

// Upsert publishes card, replacing any previous card of the same identity.
func (r *CardRepo) Upsert(ctx context.Context, card *model.Card) error {
	filter := bson.M{
		"_id": card.Identity,
	}

	_, err := r.collection.ReplaceOne(ctx, filter, card, options.Replace().SetUpsert(true))
	return err
}

// Find returns the cards that exist among ids; unknown identities are
// skipped.
func (r *CardRepo) Find(ctx context.Context, ids []model.Identity) ([]*model.Card, error) {
	filter := bson.M{
		"_id": bson.M{"$in": ids},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cards []*model.Card
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}
