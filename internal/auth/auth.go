package auth

import (
	"crypto/rsa"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the authenticated caller's position relative to an appointment.
// Authorization beyond party membership is out of scope for this service;
// upstream issues the token, this package only validates and unpacks it.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient, RoleProvider, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Actor is the authenticated caller attached to the request context.
type Actor struct {
	UserID int64
	Email  string
	Role   Role
}

func (a *Actor) IsClient() bool {
	return a.Role == RoleClient
}

func (a *Actor) IsProvider() bool {
	return a.Role == RoleProvider
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role in token claims")
)

// TokenValidator verifies RS256 access tokens issued by the identity
// service and turns their claims into an Actor.
type TokenValidator struct {
	publicKey *rsa.PublicKey
}

func NewTokenValidator(publicKey *rsa.PublicKey) *TokenValidator {
	return &TokenValidator{publicKey: publicKey}
}

func (v *TokenValidator) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.publicKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ActorFromClaims resolves the token claims into an Actor, failing on
// malformed user ids or roles outside the known set.
func ActorFromClaims(claims *Claims) (*Actor, error) {
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}

	role, ok := ParseRole(claims.Role)
	if !ok {
		return nil, ErrUnknownRole
	}

	return &Actor{
		UserID: userID,
		Email:  claims.Email,
		Role:   role,
	}, nil
}
