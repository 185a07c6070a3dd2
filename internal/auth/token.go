// Package auth verifies identity provider tokens and binds the verified email
// to the portal session.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/shared"
)

// Claims are the identity token fields the portal consumes.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into an account identity.
func (c Claims) Identity() accounts.Identity {
	return accounts.Identity{Email: c.Email, DisplayName: c.Name, AvatarURL: c.Picture}
}

// TokenVerifier checks HS256 identity tokens minted by the identity provider.
type TokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewTokenVerifier constructs a verifier. An empty issuer skips the iss check.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

// Verify parses raw and returns its claims. Every failure wraps
// shared.ErrInvalidToken.
func (v *TokenVerifier) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", shared.ErrInvalidToken)
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if !v.withinLeeway(err, claims) {
			return Claims{}, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
		}
	} else if !token.Valid {
		return Claims{}, fmt.Errorf("%w: token not valid", shared.ErrInvalidToken)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Claims{}, fmt.Errorf("%w: unexpected issuer %q", shared.ErrInvalidToken, claims.Issuer)
	}
	if accounts.NormalizeEmail(claims.Email) == "" {
		return Claims{}, fmt.Errorf("%w: email claim missing", shared.ErrInvalidToken)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return Claims{}, fmt.Errorf("%w: email not verified", shared.ErrInvalidToken)
	}
	return claims, nil
}

// withinLeeway tolerates small clock skew on exp and nbf. Any other
// validation failure is fatal.
func (v *TokenVerifier) withinLeeway(err error, claims Claims) bool {
	var verr *jwt.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	timing := uint32(jwt.ValidationErrorExpired | jwt.ValidationErrorNotValidYet | jwt.ValidationErrorIssuedAt)
	if verr.Errors&^timing != 0 {
		return false
	}
	now := time.Now()
	if claims.ExpiresAt != nil && now.Sub(claims.ExpiresAt.Time) > v.leeway {
		return false
	}
	if claims.NotBefore != nil && claims.NotBefore.Time.Sub(now) > v.leeway {
		return false
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.Sub(now) > v.leeway {
		return false
	}
	return true
}

// Sign mints a token with the verifier's key. Used by tests and local
// development tooling.
func (v *TokenVerifier) Sign(claims Claims) (string, error) {
	if claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
