package domain

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// Claim authorizes a UI client of the local companion server.
type Claim struct {
	ClientID uuid.UUID `json:"client_id"`
	Username string    `json:"username,omitempty"`
	jwt.StandardClaims
}
