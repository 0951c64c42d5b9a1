package session

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Role is the platform role of an account
type Role string

const (
	RoleEmployer  Role = "employer"
	RoleCandidate Role = "candidate"
)

// User is the identity snapshot returned by the identity and refresh
// endpoints. It is replaced wholesale and never mutated.
type User struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,oneof=employer candidate"`
}

// IsEmployer reports whether the user may manage assessments
func (u *User) IsEmployer() bool {
	return u != nil && u.Role == RoleEmployer
}

var validate = validator.New()

// decodeUser parses an identity body. Both the bare identity and the
// {"user": {...}} envelope are accepted.
func decodeUser(body []byte) (*User, error) {
	var envelope struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}

	user := envelope.User
	if user == nil {
		user = &User{}
		if err := json.Unmarshal(body, user); err != nil {
			return nil, fmt.Errorf("failed to decode identity: %w", err)
		}
	}

	if err := validate.Struct(user); err != nil {
		return nil, fmt.Errorf("invalid identity: %w", err)
	}

	return user, nil
}
