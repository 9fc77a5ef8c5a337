package database

import (
	"time"

	"github.com/google/uuid"
)

// User represents a student account
type User struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	Username   string    `json:"username" db:"username"`
	FirstName  string    `json:"firstName" db:"first_name"`
	Age        *int      `json:"age,omitempty" db:"age"`
	University string    `json:"university,omitempty" db:"university"`
	Interests  []string  `json:"interests" db:"interests"`
	Verified   bool      `json:"verified" db:"verified"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// SavedItem is a researcher or professor a user has saved to a list
type SavedItem struct {
	ID        string    `json:"id" db:"id"`
	ListKey   string    `json:"listKey" db:"list_key"`
	ItemID    string    `json:"itemId" db:"item_id"`
	Payload   string    `json:"payload" db:"payload"` // JSON snapshot of the item
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// NewUser creates a new user with generated ID
func NewUser(email, username, firstName string) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  username,
		FirstName: firstName,
		Interests: []string{},
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSavedItem creates a new saved item with generated ID
func NewSavedItem(listKey, itemID, payload string) *SavedItem {
	return &SavedItem{
		ID:        uuid.New().String(),
		ListKey:   listKey,
		ItemID:    itemID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
