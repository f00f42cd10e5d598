package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService mints and validates the bearer tokens the HTTP service
// requires on /v1/run and /v1/stream. `jqawk token create` mints a
// token with the same secret the server is configured with.
type AuthService struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthService creates an AuthService signing with HS256 using secret.
func NewAuthService(secret string, ttl time.Duration) *AuthService {
	return &AuthService{secret: []byte(secret), ttl: ttl}
}

// IssueToken mints a token identifying subject (typically a CLI user
// or service name, not a login identity — jqawk has no user accounts).
func (a *AuthService) IssueToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(a.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate parses and verifies a bearer token, rejecting anything not
// signed with HS256 to rule out algorithm-confusion attacks.
func (a *AuthService) Validate(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
