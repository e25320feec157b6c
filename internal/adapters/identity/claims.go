// Package identity provides identity source adapters.
// Clean Architecture: Adapter implementing ports.IdentitySource.
//
// Tokens are issued and verified by the backend; this package only reads
// their claims to learn who is signed in and when the credential expires.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

// Claims represents the token claims we read.
type Claims struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// PrincipalFromToken decodes the principal carried by a bearer token.
// The signature is not checked.
func PrincipalFromToken(raw string) (*entities.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, entities.ErrUnauthenticated
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}

	uid := claims.UserID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return nil, fmt.Errorf("token carries no subject")
	}

	p := &entities.Principal{UID: uid, Email: claims.Email}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// expired reports whether p's credential is past its expiry, allowing skew.
func expired(p *entities.Principal, now time.Time, skew time.Duration) bool {
	if p == nil || p.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(p.ExpiresAt)
}
