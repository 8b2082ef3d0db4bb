// Package auth verifies operator bearer tokens and carries the
// authenticated operator through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("auth: missing bearer token")

	// ErrInvalidToken covers bad signatures, expiry and missing claims.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Operator is the authenticated user acting on the API.
type Operator struct {
	ID    string
	Email string
}

// Claims are the token claims issued by the login flow.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Verifier checks HS256 tokens.
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

func NewVerifier(cfg *config.AuthConfig) *Verifier {
	validation.AssertNotNil(cfg, "auth config")

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{secret: []byte(cfg.JWTSecret), opts: opts}
}

// Verify parses token and returns its operator. The subject claim is used
// when userId is absent.
func (v *Verifier) Verify(token string) (*Operator, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return nil, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	return &Operator{ID: id, Email: claims.Email}, nil
}

// VerifyHeader verifies an "Authorization: Bearer <token>" value.
func (v *Verifier) VerifyHeader(header string) (*Operator, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	return v.Verify(strings.TrimSpace(token))
}

// Sign issues a token for op. Used by tooling and tests; the API never issues tokens.
func Sign(secret, issuer string, op Operator, claims jwt.RegisteredClaims) (string, error) {
	claims.Issuer = issuer
	if claims.Subject == "" {
		claims.Subject = op.ID
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: claims, UserID: op.ID, Email: op.Email})
	return t.SignedString([]byte(secret))
}

type ctxKey struct{}

// WithOperator stores op in ctx.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, ctxKey{}, op)
}

// FromContext returns the operator stored by WithOperator.
func FromContext(ctx context.Context) (*Operator, bool) {
	op, ok := ctx.Value(ctxKey{}).(*Operator)
	return op, ok && op != nil
}
