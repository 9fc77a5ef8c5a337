package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = sql.ErrNoRows

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a new user record
func (r *Repository) CreateUser(user *User) error {
	interests, err := json.Marshal(user.Interests)
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement("insert_user")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(user.ID, user.Email, user.Username, user.FirstName,
		user.Age, user.University, string(interests), user.Verified,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail fetches a user by email address
func (r *Repository) GetUserByEmail(email string) (*User, error) {
	stmt, err := r.db.GetPreparedStatement("get_user_by_email")
	if err != nil {
		return nil, err
	}

	var user User
	var interests string
	err = stmt.QueryRow(email).Scan(
		&user.ID, &user.Email, &user.Username, &user.FirstName,
		&user.Age, &user.University, &interests, &user.Verified,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if err := json.Unmarshal([]byte(interests), &user.Interests); err != nil {
		user.Interests = []string{}
	}

	return &user, nil
}

// UpdateUser updates the mutable fields of a user identified by email
func (r *Repository) UpdateUser(email, firstName string, age *int, university string, userInterests []string) (*User, error) {
	interests, err := json.Marshal(userInterests)
	if err != nil {
		return nil, fmt.Errorf("failed to encode interests: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement("update_user")
	if err != nil {
		return nil, err
	}

	res, err := stmt.Exec(firstName, age, university, string(interests), time.Now(), email)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return r.GetUserByEmail(email)
}

// SaveItem upserts a saved item into a list
func (r *Repository) SaveItem(item *SavedItem) error {
	stmt, err := r.db.GetPreparedStatement("insert_saved_item")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(item.ID, item.ListKey, item.ItemID, item.Payload, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	return nil
}

// GetSavedItems returns all items in a list, newest first
func (r *Repository) GetSavedItems(listKey string) ([]SavedItem, error) {
	stmt, err := r.db.GetPreparedStatement("get_saved_items")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(listKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved items: %w", err)
	}
	defer rows.Close()

	items := []SavedItem{}
	for rows.Next() {
		var item SavedItem
		if err := rows.Scan(&item.ID, &item.ListKey, &item.ItemID, &item.Payload, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// DeleteSavedItem removes an item from a list
func (r *Repository) DeleteSavedItem(listKey, itemID string) error {
	stmt, err := r.db.GetPreparedStatement("delete_saved_item")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(listKey, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete saved item: %w", err)
	}

	return nil
}

// SetValue upserts a key/value pair
func (r *Repository) SetValue(key, value string) error {
	stmt, err := r.db.GetPreparedStatement("upsert_kv")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}

	return nil
}

// GetValue fetches a value by key
func (r *Repository) GetValue(key string) (string, error) {
	stmt, err := r.db.GetPreparedStatement("get_kv")
	if err != nil {
		return "", err
	}

	var value string
	err = stmt.QueryRow(key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get value: %w", err)
	}

	return value, nil
}

// DeleteValue removes a key/value pair
func (r *Repository) DeleteValue(key string) error {
	stmt, err := r.db.GetPreparedStatement("delete_kv")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(key)
	if err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}

	return nil
}

// ListKeys returns all keys matching the prefix, sorted
func (r *Repository) ListKeys(prefix string) ([]string, error) {
	stmt, err := r.db.GetPreparedStatement("list_kv_keys")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(prefix + "%")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}
