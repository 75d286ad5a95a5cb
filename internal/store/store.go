package store

import (
	"context"
	"strings"

	"github.com/abdghn/youapp-be-test/internal/models"
	"github.com/abdghn/youapp-be-test/internal/validation"
)

// UserStore defines the credential store.
type UserStore interface {
	// CreateUser stores a new user and fills in its ID and timestamps.
	// Username and email are trimmed and lower-cased first.
	// Returns a conflict error if either is already taken.
	CreateUser(ctx context.Context, user *models.User) error

	// FindByIdentifier looks a user up by email when the identifier contains
	// an "@" and by username otherwise. The password hash is included.
	// Returns a not-found error if no user matches.
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)

	// FindByID retrieves a user without the password hash.
	// Returns a not-found error if the user doesn't exist.
	FindByID(ctx context.Context, id string) (*models.User, error)

	// UpdateProfile applies the non-empty fields of update and returns the
	// updated user without the password hash.
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error)
}

// MessageStore defines message persistence.
type MessageStore interface {
	// CreateMessage validates and stores a message in a single write.
	// Returns a validation error for empty content or malformed ids and a
	// not-found error if the receiver (or sender) doesn't exist.
	CreateMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)

	// ListForReceiver returns every message addressed to receiverID in
	// insertion order, with the sender resolved to its public profile.
	ListForReceiver(ctx context.Context, receiverID string) ([]models.MessageView, error)
}

// Store is a backend holding both users and messages.
type Store interface {
	UserStore
	MessageStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

const (
	FieldUsername = "username"
	FieldEmail    = "email"
)

// IdentifierField reports which unique key a login identifier addresses.
func IdentifierField(identifier string) string {
	if strings.Contains(identifier, "@") {
		return FieldEmail
	}
	return FieldUsername
}

// Normalize trims and lower-cases a username or email.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type newMessage struct {
	SenderID   string `json:"senderId" validate:"required,mongodb"`
	ReceiverID string `json:"receiverId" validate:"required,mongodb"`
	Content    string `json:"content" validate:"required"`
}

func validateNewMessage(senderID, receiverID, content string) error {
	return validation.Struct(newMessage{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    strings.TrimSpace(content),
	})
}
