package jwt

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenIntrospection is what the client can read from a backend access token.
// The signature is not verified: the backend remains the authority and the
// values are only used for display and for deciding when to warn.
type TokenIntrospection struct {
	Active    bool      `json:"active"`               // Not yet expired
	Subject   string    `json:"sub,omitempty"`        // Users unique ID
	Email     string    `json:"email,omitempty"`      // Email, when the backend includes it
	Role      string    `json:"role,omitempty"`       // user_role or role claim
	TokenType string    `json:"token_type,omitempty"` // access or refresh
	JTI       string    `json:"jti,omitempty"`        // Token ID
	IssuedAt  time.Time `json:"iat,omitempty"`        // Issued at time
	ExpiresAt time.Time `json:"exp,omitempty"`        // Expiration, zero when absent
}

// ExpiresIn is the time left before expiry, zero when expired or unknown.
func (t *TokenIntrospection) ExpiresIn() time.Duration {
	if t == nil || t.ExpiresAt.IsZero() {
		return 0
	}
	if d := t.ExpiresAt.Sub(NowTimeFunc()); d > 0 {
		return d
	}
	return 0
}

// Introspect reads the claims of a JWT without verifying it. Opaque tokens
// return ErrUnsupported; callers treat the token as valid until the backend
// says otherwise.
func Introspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnsupported, "access token is not a readable JWT: %v", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupported, "error extracting claims")
	}

	out := &TokenIntrospection{Active: true}
	out.Subject, _ = claims.GetSubject()
	if out.Subject == "" {
		out.Subject = utils.ToString(claims["user_id"])
	}
	out.Email, _ = claims["email"].(string)
	out.Role, _ = claims["user_role"].(string)
	if out.Role == "" {
		out.Role, _ = claims["role"].(string)
	}
	out.TokenType, _ = claims["token_type"].(string)
	out.JTI, _ = claims["jti"].(string)

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
		if !NowTimeFunc().Before(exp.Time) {
			out.Active = false
		}
	}
	return out, nil
}
