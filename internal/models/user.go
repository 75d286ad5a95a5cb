package models

import "time"

// User is an account owned by the credential store. PasswordHash is only
// populated by lookups that explicitly ask for it and is never serialized.
type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Fullname     string    `json:"fullname,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Birthday     string    `json:"birthdayDate,omitempty"`
	Horoscope    string    `json:"horoscope,omitempty"`
	Zodiac       string    `json:"zodiac,omitempty"`
	Height       *float64  `json:"height,omitempty"`
	Weight       *float64  `json:"weight,omitempty"`
	Interests    []string  `json:"interests,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WithoutSecret returns a copy of u with the password hash cleared.
func (u User) WithoutSecret() *User {
	u.PasswordHash = ""
	return &u
}

// SenderProfile projects the fields other users may see next to a message.
func (u User) SenderProfile() *SenderProfile {
	return &SenderProfile{ID: u.ID, Fullname: u.Fullname, Horoscope: u.Horoscope, Zodiac: u.Zodiac}
}

// ProfileUpdate holds optional profile fields; zero values are left untouched.
type ProfileUpdate struct {
	Fullname  string   `json:"fullname"`
	Gender    string   `json:"gender"`
	Birthday  string   `json:"birthdayDate"`
	Horoscope string   `json:"horoscope"`
	Zodiac    string   `json:"zodiac"`
	Height    *float64 `json:"height"`
	Weight    *float64 `json:"weight"`
	Interests []string `json:"interests"`
}

// Apply copies the non-empty fields of p onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Fullname != "" {
		u.Fullname = p.Fullname
	}
	if p.Gender != "" {
		u.Gender = p.Gender
	}
	if p.Birthday != "" {
		u.Birthday = p.Birthday
	}
	if p.Horoscope != "" {
		u.Horoscope = p.Horoscope
	}
	if p.Zodiac != "" {
		u.Zodiac = p.Zodiac
	}
	if p.Height != nil {
		u.Height = p.Height
	}
	if p.Weight != nil {
		u.Weight = p.Weight
	}
	if len(p.Interests) > 0 {
		u.Interests = p.Interests
	}
}
