package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/abdghn/youapp-be-test/internal/models"
)

// ContentType is the media type of every published payload.
const ContentType = "application/json"

// payload is the flat wire form of a message. Timestamps are explicit
// RFC 3339 strings so consumers in other languages parse them unambiguously.
type payload struct {
	ID         string `json:"_id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Encode serializes msg to its queue payload.
func Encode(msg *models.Message) ([]byte, error) {
	return json.Marshal(payload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  msg.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (*models.Message, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode message payload: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}
	return &models.Message{
		ID:         p.ID,
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}
