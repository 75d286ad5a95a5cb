package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/crypto"
	"github.com/abdghn/youapp-be-test/internal/models"
	"github.com/abdghn/youapp-be-test/internal/store"
)

func newService() (*Service, *store.Memory) {
	users := store.NewMemory()
	return NewService(users, 4), users
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, users := newService()

	u, err := svc.Register(ctx, RegisterRequest{Username: " Alice ", Email: "Alice@X.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Empty(t, u.PasswordHash)

	stored, err := users.FindByIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", stored.PasswordHash)
	assert.True(t, crypto.Compare(stored.PasswordHash, "secret"))

	_, err = svc.Register(ctx, RegisterRequest{Username: "ALICE", Email: "a2@x.com", Password: "secret"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService()
	cases := []struct {
		name string
		req  RegisterRequest
		msg  string
	}{
		{"no username", RegisterRequest{Email: "a@x.com", Password: "p"}, "username should not be empty"},
		{"bad email", RegisterRequest{Username: "a", Email: "nope", Password: "p"}, "email must be an email"},
		{"no password", RegisterRequest{Username: "a", Email: "a@x.com"}, "password should not be empty"},
		{"at in username", RegisterRequest{Username: "a@b", Email: "a@x.com", Password: "p"}, "username must not contain @"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Equal(t, tc.msg, apperr.MessageOf(err))
		})
	}
}

func TestSaveProfileDerivesSigns(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	u, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret"})
	require.NoError(t, err)

	height := 160.0
	got, err := svc.SaveProfile(ctx, u.ID, models.ProfileUpdate{
		Fullname:  "Alice",
		Birthday:  "14-08-1995",
		Horoscope: "Aries",
		Height:    &height,
		Interests: []string{"music"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Leo", got.Horoscope)
	assert.Equal(t, "Pig", got.Zodiac)
	assert.Equal(t, "14-08-1995", got.Birthday)
	assert.Equal(t, []string{"music"}, got.Interests)

	profile, err := svc.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Fullname)
	assert.Empty(t, profile.PasswordHash)
}

func TestSaveProfileRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	u, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.SaveProfile(ctx, u.ID, models.ProfileUpdate{Birthday: "1995-08-14"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	weight := -1.0
	_, err = svc.SaveProfile(ctx, u.ID, models.ProfileUpdate{Weight: &weight})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.GetProfile(ctx, "65f000000000000000000009")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
