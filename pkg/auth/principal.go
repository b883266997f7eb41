// Package auth verifies the identity provider's HS256 access tokens.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAnonymous is carried by the provider's public key; it never grants API
// access.
const RoleAnonymous = "anon"

// Principal is the caller behind a verified token. Org membership is not part
// of it; that is resolved per request from the database.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) principal() (Principal, error) {
	if c.Role == RoleAnonymous {
		return Principal{}, ErrAnonymous
	}
	if c.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("subject %q: %w", c.Subject, err)
	}
	if id == uuid.Nil {
		return Principal{}, errors.New("subject is the nil uuid")
	}
	return Principal{UserID: id, Email: c.Email, Role: c.Role}, nil
}
