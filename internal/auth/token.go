// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the session token lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Issuer produces and verifies signed, time-limited session tokens.
// Tokens are stateless: nothing is persisted server-side, so signout is a
// client-side cookie removal. The signing key is process-wide configuration
// loaded once at startup.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer signing with the given secret. A zero or
// negative ttl falls back to DefaultTokenTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("signing secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the configured token lifetime. The HTTP layer uses it to set
// the cookie Max-Age to match.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed HS256 token with the user ID as subject.
func (i *Issuer) Issue(userID ulid.ULID) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the subject user ID.
// Failures are the domain sentinels: ErrTokenExpired for a good signature
// past its expiry instant, ErrTokenInvalid for everything else (bad
// signature, malformed payload, wrong algorithm, unparsable subject).
func (i *Issuer) Verify(token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, ErrTokenMissing
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ulid.ULID{}, ErrTokenExpired
		}
		return ulid.ULID{}, ErrTokenInvalid
	}
	if !parsed.Valid {
		return ulid.ULID{}, ErrTokenInvalid
	}

	userID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, ErrTokenInvalid
	}
	return userID, nil
}
