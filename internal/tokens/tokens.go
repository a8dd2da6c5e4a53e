package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class distinguishes the two token kinds; each class is signed with its own secret.
type Class string

const (
	Access  Class = "access"
	Refresh Class = "refresh"
)

var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token is expired")
	ErrMalformed        = errors.New("token is malformed")
)

// Claims is the payload of both token classes. Refresh tokens only carry the
// registered claims (sub, iat, exp, jti).
type Claims struct {
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccessClaims builds the identity claims carried by an access token.
func AccessClaims(subjectID, username, fullName, email string) Claims {
	return Claims{
		Username:         username,
		FullName:         fullName,
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subjectID},
	}
}

// RefreshClaims builds the subject-only claims of a refresh token.
func RefreshClaims(subjectID string) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subjectID}}
}

// Issue signs claims with secret (HS256). iat, exp and a random jti are set
// here; any values already present in claims are overwritten.
func Issue(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	return issueAt(claims, secret, ttl, time.Now())
}

// Verify checks signature and expiry and returns the embedded claims.
func Verify(token string, secret []byte) (*Claims, error) {
	return verifyAt(token, secret, time.Now)
}

func issueAt(claims Claims, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = uuid.NewString()
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString(secret)
}

func verifyAt(token string, secret []byte, now func() time.Time) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return &claims, nil
}

// classify folds jwt parser errors into the three codec failures.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// Codec binds a token class to its secret and lifetime.
type Codec struct {
	class  Class
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec returns a codec for class. An empty secret or non-positive ttl is an error.
func NewCodec(class Class, secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%s token secret is not set", class)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%s token ttl must be positive", class)
	}
	return &Codec{class: class, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// MustCodec is NewCodec for startup wiring; it panics on a missing secret.
func MustCodec(class Class, secret string, ttl time.Duration) *Codec {
	c, err := NewCodec(class, secret, ttl)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Codec) Class() Class       { return c.class }
func (c *Codec) TTL() time.Duration { return c.ttl }

func (c *Codec) Issue(claims Claims) (string, error) {
	return issueAt(claims, c.secret, c.ttl, c.now())
}

func (c *Codec) Verify(token string) (*Claims, error) {
	return verifyAt(token, c.secret, c.now)
}
