package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when a bearer token fails validation
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims are the JWT claims accepted by the token node API.
// The subject names the operator or service calling the API.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// JWTValidator validates HMAC-signed JWT bearer tokens
type JWTValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewJWTValidator creates a new JWT validator for the shared secret.
// An empty issuer disables the issuer check.
func NewJWTValidator(secret []byte, issuer string) *JWTValidator {
	return &JWTValidator{
		secret: secret,
		issuer: issuer,
		leeway: 30 * time.Second,
	}
}

// ValidateToken validates a JWT token and returns its claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// IssueToken signs a token for subject valid for ttl. Used by operators and tests.
func (v *JWTValidator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
