package model

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a stored user document. Historical records disagree on field
// names, so the id and email accessors try each known variant in a fixed
// priority order.
type User struct {
	RawID        interface{} `bson:"_id,omitempty"`
	ID           string      `bson:"id,omitempty"`
	Username     string      `bson:"username"`
	Email        string      `bson:"email,omitempty"`
	Mail         string      `bson:"mail,omitempty"`
	ContactEmail string      `bson:"contact_email,omitempty"`
}

// UserID returns the user's identifier, preferring the explicit id field
// over the store-assigned _id.
func (u *User) UserID() string {
	if u.ID != "" {
		return u.ID
	}
	switch v := u.RawID.(type) {
	case nil:
		return ""
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	default:
		return fmt.Sprint(v)
	}
}

// BestEmail returns the first present email field: email, mail, then
// contact_email. Empty string means no email on record.
func (u *User) BestEmail() string {
	if u.Email != "" {
		return u.Email
	}
	if u.Mail != "" {
		return u.Mail
	}
	return u.ContactEmail
}

// Watchlist holds a user's ordered watchlist symbols
type Watchlist struct {
	UserID  string   `bson:"user_id"`
	Symbols []string `bson:"symbols"`
}
