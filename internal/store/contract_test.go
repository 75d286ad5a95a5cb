package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/models"
)

// runContract exercises the behaviour every Store backend must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	register := func(t *testing.T, s Store, username, email string) *models.User {
		t.Helper()
		u := &models.User{Username: username, Email: email, PasswordHash: "hash-" + username}
		require.NoError(t, s.CreateUser(ctx, u))
		return u
	}

	t.Run("create user normalizes and assigns id", func(t *testing.T) {
		s := newStore(t)
		u := register(t, s, "  Alice ", "Alice@X.com ")
		assert.True(t, primitive.IsValidObjectID(u.ID))
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, "alice@x.com", u.Email)
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("duplicate username or email conflicts", func(t *testing.T) {
		s := newStore(t)
		register(t, s, "alice", "alice@x.com")

		err := s.CreateUser(ctx, &models.User{Username: "ALICE", Email: "other@x.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
		err = s.CreateUser(ctx, &models.User{Username: "other", Email: "alice@x.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("find by identifier switches on @ and returns hash", func(t *testing.T) {
		s := newStore(t)
		u := register(t, s, "alice", "alice@x.com")

		byName, err := s.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
		assert.Equal(t, "hash-alice", byName.PasswordHash)

		byEmail, err := s.FindByIdentifier(ctx, "Alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		// an email typed into the username slot is never matched against usernames
		_, err = s.FindByIdentifier(ctx, "alice@")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = s.FindByIdentifier(ctx, "nobody")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("find by id hides hash", func(t *testing.T) {
		s := newStore(t)
		u := register(t, s, "alice", "alice@x.com")

		got, err := s.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Empty(t, got.PasswordHash)

		_, err = s.FindByID(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = s.FindByID(ctx, "not-an-id")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("update profile", func(t *testing.T) {
		s := newStore(t)
		u := register(t, s, "alice", "alice@x.com")
		height := 165.0

		got, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Fullname: "Alice A", Horoscope: "Leo", Height: &height})
		require.NoError(t, err)
		assert.Equal(t, "Alice A", got.Fullname)
		assert.Equal(t, "Leo", got.Horoscope)
		require.NotNil(t, got.Height)
		assert.InDelta(t, 165.0, *got.Height, 0.001)
		assert.Empty(t, got.PasswordHash)

		got, err = s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Gender: "female"})
		require.NoError(t, err)
		assert.Equal(t, "Alice A", got.Fullname, "empty fields must not overwrite")
		assert.Equal(t, "female", got.Gender)

		_, err = s.UpdateProfile(ctx, primitive.NewObjectID().Hex(), models.ProfileUpdate{Gender: "x"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("create message", func(t *testing.T) {
		s := newStore(t)
		alice := register(t, s, "alice", "alice@x.com")
		bob := register(t, s, "bob", "bob@x.com")

		msg, err := s.CreateMessage(ctx, alice.ID, bob.ID, "hi")
		require.NoError(t, err)
		assert.True(t, primitive.IsValidObjectID(msg.ID))
		assert.Equal(t, alice.ID, msg.SenderID)
		assert.Equal(t, bob.ID, msg.ReceiverID)
		assert.Equal(t, "hi", msg.Content)
		assert.False(t, msg.CreatedAt.IsZero())
		assert.Equal(t, msg.CreatedAt, msg.UpdatedAt)
	})

	t.Run("create message rejects bad input without persisting", func(t *testing.T) {
		s := newStore(t)
		alice := register(t, s, "alice", "alice@x.com")
		bob := register(t, s, "bob", "bob@x.com")

		_, err := s.CreateMessage(ctx, alice.ID, bob.ID, "")
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = s.CreateMessage(ctx, alice.ID, bob.ID, "   ")
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = s.CreateMessage(ctx, alice.ID, "bob", "hi")
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = s.CreateMessage(ctx, alice.ID, primitive.NewObjectID().Hex(), "hi")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		inbox, err := s.ListForReceiver(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, inbox)
	})

	t.Run("list for receiver enriches sender", func(t *testing.T) {
		s := newStore(t)
		alice := register(t, s, "alice", "alice@x.com")
		bob := register(t, s, "bob", "bob@x.com")
		carol := register(t, s, "carol", "carol@x.com")
		_, err := s.UpdateProfile(ctx, alice.ID, models.ProfileUpdate{Fullname: "Alice A", Horoscope: "Virgo", Zodiac: "Pig", Gender: "female"})
		require.NoError(t, err)

		_, err = s.CreateMessage(ctx, alice.ID, bob.ID, "first")
		require.NoError(t, err)
		_, err = s.CreateMessage(ctx, carol.ID, alice.ID, "not for bob")
		require.NoError(t, err)
		_, err = s.CreateMessage(ctx, alice.ID, bob.ID, "second")
		require.NoError(t, err)

		inbox, err := s.ListForReceiver(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, inbox, 2)
		assert.Equal(t, "first", inbox[0].Content)
		assert.Equal(t, "second", inbox[1].Content)
		assert.Equal(t, &models.SenderProfile{ID: alice.ID, Fullname: "Alice A", Horoscope: "Virgo", Zodiac: "Pig"}, inbox[0].Sender)
		assert.Equal(t, bob.ID, inbox[0].ReceiverID)

		_, err = s.ListForReceiver(ctx, "bob")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestIdentifierField(t *testing.T) {
	assert.Equal(t, FieldEmail, IdentifierField("alice@x.com"))
	assert.Equal(t, FieldEmail, IdentifierField("@"))
	assert.Equal(t, FieldUsername, IdentifierField("alice"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice@x.com", Normalize("  Alice@X.COM\t"))
}
