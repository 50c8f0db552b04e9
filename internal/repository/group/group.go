package group

import (
	"context"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	GroupRepo struct {
		collection *mongo.Collection
	}
)

func NewGroupRepo(db *mongo.Database) *GroupRepo {
	return &GroupRepo{
		collection: db.Collection("groups"),
	}
}

// EnsureIndexes makes (owner_id, group_id) unique, which is what rejects
// duplicate group creation.
func (r *GroupRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "group_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *GroupRepo) Create(ctx context.Context, rec *model.GroupRecord) error {
	_, err := r.collection.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *GroupRepo) Get(ctx context.Context, owner model.Identity, groupID string) (*model.GroupRecord, error) {
	filter := bson.M{
		"owner_id": owner,
		"group_id": groupID,
	}

	var rec model.GroupRecord
	err := r.collection.FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, repository.ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &rec, nil
}
