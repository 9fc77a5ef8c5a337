package database

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrUserExists is returned when creating a user with an email already on file
	ErrUserExists = errors.New("user already exists")

	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
)

// IsValidEmail reports whether the email has a plausible shape
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidUsername reports whether the username is 3-20 chars of
// alphanumerics, underscore, or hyphen
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// UserService provides business logic for user management
type UserService struct {
	repo *Repository
}

// NewUserService creates a new user service
func NewUserService(repo *Repository) *UserService {
	return &UserService{repo: repo}
}

// CreateUser validates and creates a new user account
func (s *UserService) CreateUser(email, username, firstName string, age *int, university string, interests []string) (*User, error) {
	if email == "" || username == "" || firstName == "" {
		return nil, fmt.Errorf("missing required fields")
	}
	if !IsValidEmail(email) {
		return nil, fmt.Errorf("invalid email address")
	}
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("invalid username")
	}

	if _, err := s.repo.GetUserByEmail(email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user := NewUser(email, username, firstName)
	user.Age = age
	user.University = university
	if interests != nil {
		user.Interests = interests
	}

	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser fetches a user by email
func (s *UserService) GetUser(email string) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("email required")
	}
	return s.repo.GetUserByEmail(email)
}

// UpdateUser updates a user's profile fields
func (s *UserService) UpdateUser(email, firstName string, age *int, university string, interests []string) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("email required")
	}
	if interests == nil {
		interests = []string{}
	}
	return s.repo.UpdateUser(email, firstName, age, university, interests)
}
