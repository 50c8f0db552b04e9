package token

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeed(t *testing.T) string {
	t.Helper()
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(seed)
}

func TestIssueVerify(t *testing.T) {
	iss, err := NewIssuer("app", "k1", newSeed(t), time.Hour)
	require.NoError(t, err)

	tok, err := iss.Issue("alice")
	require.NoError(t, err)

	id, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.String())
}

func TestVerifyRejects(t *testing.T) {
	seed := newSeed(t)
	iss, err := NewIssuer("app", "k1", seed, time.Minute)
	require.NoError(t, err)

	tok, err := iss.Issue("alice")
	require.NoError(t, err)

	other, err := NewIssuer("app", "k1", newSeed(t), time.Minute)
	require.NoError(t, err)
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "foreign key")

	otherApp, err := NewIssuer("other-app", "k1", seed, time.Minute)
	require.NoError(t, err)
	_, err = otherApp.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "foreign audience")

	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	_, err = iss.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerValidatesKey(t *testing.T) {
	_, err := NewIssuer("app", "", "!!!", time.Hour)
	assert.Error(t, err)

	_, err = NewIssuer("app", "", base64.StdEncoding.EncodeToString([]byte("short")), time.Hour)
	assert.Error(t, err)

	_, err = NewIssuer("app", "", newSeed(t), 0)
	assert.Error(t, err)
}
