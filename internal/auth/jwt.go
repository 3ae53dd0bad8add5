package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Metadata is the optional profile data the identity provider attaches to a
// token.
type Metadata struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Claims represents the JWT claims issued by the identity provider.
type Claims struct {
	Email        string   `json:"email"`
	UserMetadata Metadata `json:"user_metadata,omitzero"`
	jwt.RegisteredClaims
}

// Principal is an authenticated caller as seen by the identity provider.
type Principal struct {
	Email       string
	DisplayName string
	AvatarURL   string
}

// Principal returns the caller described by the claims.
func (c *Claims) Principal() Principal {
	return Principal{
		Email:       c.Email,
		DisplayName: c.UserMetadata.DisplayName,
		AvatarURL:   c.UserMetadata.AvatarURL,
	}
}

// TokenExpiry is the default token lifetime.
const TokenExpiry = 7 * 24 * time.Hour

// GenerateToken creates a new JWT for a principal with a unique JTI.
func GenerateToken(secret string, p Principal) (string, error) {
	if strings.TrimSpace(p.Email) == "" {
		return "", fmt.Errorf("email required")
	}

	jti, err := generateJTI()
	if err != nil {
		return "", fmt.Errorf("generating JTI: %w", err)
	}

	now := time.Now()
	claims := Claims{
		Email: p.Email,
		UserMetadata: Metadata{
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   p.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
// Tokens without an email are rejected.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, fmt.Errorf("token has no email")
	}

	return claims, nil
}

// generateJTI creates a random token ID.
func generateJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
