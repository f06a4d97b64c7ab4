package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes what a signed token may be used for.
type TokenType string

const (
	TokenAccess        TokenType = "access"
	TokenRefresh       TokenType = "refresh"
	TokenPasswordReset TokenType = "password_reset"
)

// ErrWrongTokenType is returned when a valid token is presented for the wrong purpose.
var ErrWrongTokenType = errors.New("token type mismatch")

type jwtCustomClaims struct {
	UserID    string    `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is returned by login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GenerateToken creates a signed access JWT for the provided user ID.
func GenerateToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	return GenerateTypedToken(secret, TokenAccess, userID, ttl)
}

// GenerateTokenPair creates an access and a refresh token.
func GenerateTokenPair(secret string, userID uuid.UUID, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	access, err := GenerateTypedToken(secret, TokenAccess, userID, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := GenerateTypedToken(secret, TokenRefresh, userID, refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// GenerateTypedToken creates a signed JWT of the given type.
func GenerateTypedToken(secret string, typ TokenType, userID uuid.UUID, ttl time.Duration) (string, error) {
	token, _, err := IssueTypedToken(secret, typ, userID, ttl)
	return token, err
}

// IssueTypedToken is GenerateTypedToken that also returns the token ID (jti).
func IssueTypedToken(secret string, typ TokenType, userID uuid.UUID, ttl time.Duration) (string, string, error) {
	now := time.Now()
	claims := &jwtCustomClaims{
		UserID:    userID.String(),
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return signed, claims.ID, nil
}

// TokenClaims are the verified contents of a token.
type TokenClaims struct {
	UserID uuid.UUID
	ID     string
}

// ParseToken validates an access token and returns the embedded user ID.
func ParseToken(secret, tokenString string) (uuid.UUID, error) {
	return ParseTypedToken(secret, TokenAccess, tokenString)
}

// ParseTypedToken validates the token, checks its type and returns the embedded user ID.
func ParseTypedToken(secret string, typ TokenType, tokenString string) (uuid.UUID, error) {
	claims, err := ParseTypedClaims(secret, typ, tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

// ParseTypedClaims validates the token, checks its type and returns its user and token IDs.
func ParseTypedClaims(secret string, typ TokenType, tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.TokenType != typ {
		return nil, ErrWrongTokenType
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, err
	}
	return &TokenClaims{UserID: userID, ID: claims.ID}, nil
}
