package store

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/models"
)

// Memory is an in-process Store. Ids are Mongo object ids so that records
// are interchangeable with the Mongo backend.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]models.User
	messages []models.Message
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]models.User),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	user.Username = Normalize(user.Username)
	user.Email = Normalize(user.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperr.Conflict("username %s already exists", user.Username)
		}
		if u.Email == user.Email {
			return apperr.Conflict("email %s already exists", user.Email)
		}
	}
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	now := m.now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	key := Normalize(identifier)
	field := IdentifierField(key)

	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := lo.FindKeyBy(m.users, func(_ string, u models.User) bool {
		if field == FieldEmail {
			return u.Email == key
		}
		return u.Username == key
	})
	if !ok {
		return nil, apperr.NotFound("User %s not available", identifier)
	}
	found := m.users[id]
	return &found, nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*models.User, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, apperr.Validation("id must be a mongodb id")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User %s not available", id)
	}
	return u.WithoutSecret(), nil
}

func (m *Memory) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, apperr.Validation("id must be a mongodb id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User %s not available", id)
	}
	update.Apply(&u)
	u.UpdatedAt = m.now()
	m.users[id] = u
	return u.WithoutSecret(), nil
}

func (m *Memory) CreateMessage(_ context.Context, senderID, receiverID, content string) (*models.Message, error) {
	if err := validateNewMessage(senderID, receiverID, content); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[receiverID]; !ok {
		return nil, apperr.NotFound("User %s not available", receiverID)
	}
	if _, ok := m.users[senderID]; !ok {
		return nil, apperr.NotFound("User %s not available", senderID)
	}
	now := m.now()
	msg := models.Message{
		ID:         primitive.NewObjectID().Hex(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *Memory) ListForReceiver(_ context.Context, receiverID string) ([]models.MessageView, error) {
	if !primitive.IsValidObjectID(receiverID) {
		return nil, apperr.Validation("receiverId must be a mongodb id")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	inbox := lo.Filter(m.messages, func(msg models.Message, _ int) bool {
		return msg.ReceiverID == receiverID
	})
	return lo.Map(inbox, func(msg models.Message, _ int) models.MessageView {
		view := models.MessageView{
			ID:         msg.ID,
			ReceiverID: msg.ReceiverID,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt,
			UpdatedAt:  msg.UpdatedAt,
		}
		if sender, ok := m.users[msg.SenderID]; ok {
			view.Sender = sender.SenderProfile()
		}
		return view
	}), nil
}
