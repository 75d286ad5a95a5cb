package models

import "time"

// Message is a persisted direct message. It is immutable once created.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SenderProfile is the restricted view of a sender attached to listed messages.
type SenderProfile struct {
	ID        string `json:"_id"`
	Fullname  string `json:"fullname,omitempty"`
	Horoscope string `json:"horoscope,omitempty"`
	Zodiac    string `json:"zodiac,omitempty"`
}

// MessageView is a Message whose sender reference has been resolved.
// Sender is nil when the sending user no longer exists.
type MessageView struct {
	ID         string         `json:"_id"`
	Sender     *SenderProfile `json:"senderId"`
	ReceiverID string         `json:"receiverId"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
