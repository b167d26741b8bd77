package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("token is invalid")

// Claims is the JWT payload issued at login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a Tokens signing with secret.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: TokenTTL, now: time.Now}
}

// Issue signs a token for username.
func (t *Tokens) Issue(username string) (string, error) {
	now := t.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate returns the username carried by a valid token.
func (t *Tokens) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}
