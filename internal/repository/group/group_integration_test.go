//go:build integration

package group

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/repository"
)

func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("E2EE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("E2EE_TEST_MONGO_URI is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database(fmt.Sprintf("e2e_groupchat_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestGroupRepoCreateGetAndDuplicates(t *testing.T) {
	ctx := context.Background()
	r := NewGroupRepo(testDatabase(t))
	require.NoError(t, r.EnsureIndexes(ctx))

	rec := &model.GroupRecord{
		OwnerID:      "alice",
		GroupID:      "g1",
		Participants: model.Identities("alice", "bob"),
		Keys: []model.WrappedKey{
			{Participant: "alice", EphemeralPub: []byte{1}, Sealed: []byte{2}},
			{Participant: "bob", EphemeralPub: []byte{3}, Sealed: []byte{4}},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Signature: []byte{7},
	}
	require.NoError(t, r.Create(ctx, rec))
	assert.ErrorIs(t, r.Create(ctx, rec), repository.ErrDuplicate)

	// Same group id under another owner is a different group.
	require.NoError(t, r.Create(ctx, &model.GroupRecord{OwnerID: "bob", GroupID: "g1"}))

	got, err := r.Get(ctx, "alice", "g1")
	require.NoError(t, err)
	assert.Equal(t, rec.Participants, got.Participants)
	assert.Equal(t, rec.Keys, got.Keys)
	assert.Equal(t, rec.Signature, got.Signature)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, err = r.Get(ctx, "carol", "g1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
