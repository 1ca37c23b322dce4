package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// SessionTokenManager mints and validates the HS256 bearer tokens carried by
// API requests. Session issuance itself (login, OAuth) lives outside this
// service; it only needs to resolve the requesting user.
type SessionTokenManager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewSessionTokenManager(signingKey []byte, ttl time.Duration) *SessionTokenManager {
	return &SessionTokenManager{signingKey: signingKey, ttl: ttl}
}

func (m *SessionTokenManager) Generate(userID uuid.UUID) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID.String(),
			Issuer:    "codehaven",
		},
		UserID: userID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

func (m *SessionTokenManager) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
