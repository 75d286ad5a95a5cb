// Package account implements registration and profile management.
package account

import (
	"context"
	"strings"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/crypto"
	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/models"
	"github.com/abdghn/youapp-be-test/internal/store"
	"github.com/abdghn/youapp-be-test/internal/validation"
	"github.com/abdghn/youapp-be-test/internal/zodiac"
)

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Service struct {
	users      store.UserStore
	bcryptCost int
}

func NewService(users store.UserStore, bcryptCost int) *Service {
	return &Service{users: users, bcryptCost: bcryptCost}
}

// Register creates an account and returns it without the password hash.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Username = store.Normalize(req.Username)
	req.Email = store.Normalize(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if strings.Contains(req.Username, "@") {
		// an "@" routes login to the email lookup, so such a username could never sign in
		return nil, apperr.Validation("username must not contain @")
	}

	hash, err := crypto.Hash(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}
	user := &models.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logger.Info("user registered", logger.FieldKV("user_id", user.ID))
	return user.WithoutSecret(), nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

// SaveProfile applies the non-empty fields of update. A birthday must be
// dd-mm-yyyy; horoscope and zodiac are then derived from it and replace
// whatever the client sent.
func (s *Service) SaveProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	update.Birthday = strings.TrimSpace(update.Birthday)
	if update.Birthday != "" {
		horoscope, chinese, err := zodiac.Derive(update.Birthday)
		if err != nil {
			return nil, apperr.Validation("birthdayDate must be in dd-mm-yyyy format")
		}
		update.Horoscope, update.Zodiac = horoscope, chinese
	}
	if negative(update.Height) || negative(update.Weight) {
		return nil, apperr.Validation("height and weight must not be negative")
	}
	return s.users.UpdateProfile(ctx, userID, update)
}

func negative(v *float64) bool { return v != nil && *v < 0 }
