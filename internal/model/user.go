// Package model defines the data structures used throughout the application.
package model

import (
	"net/url"
	"time"
)

// User represents a registered account.
//
// Email is the identity key: it is what people type to log in and what a list
// owner types to share a list. It is unique, compared exactly as stored, and
// never changes after signup. ID is our own opaque xid so that foreign keys
// (lists.owner_id, list_sharees.user_id) never embed an email address.
//
// PasswordHash holds a bcrypt hash and is never serialised.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// MyListsURL is the address of the page listing every list visible to u.
// The email is path-escaped: a local part may contain '#', '?' or '/'.
func (u *User) MyListsURL() string {
	return "/lists/users/" + url.PathEscape(u.Email) + "/"
}
