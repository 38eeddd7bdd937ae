// Package token issues and verifies short-lived signed tokens that are not
// stored anywhere. A token binds a subject to a purpose; verifying it under a
// different purpose, after it has aged out, or after any modification fails.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"uk.co.dudmesh.bloggr/internal/model"
)

type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of the signer reading time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	return &Signer{secret: s.secret, now: now}
}

// Issue signs subject for purpose. The purpose salts the signing key and is
// also carried as the audience.
func (s *Signer) Issue(purpose, subject string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		Audience: jwt.ClaimStrings{purpose},
		IssuedAt: jwt.NewNumericDate(s.now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key(purpose))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify returns the subject of a token issued for purpose no more than maxAge ago.
// Every failure is reported as model.ErrorTokenExpiredOrInvalid.
func (s *Signer) Verify(signed, purpose string, maxAge time.Duration) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return s.key(purpose), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(purpose),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrorTokenExpiredOrInvalid, err)
	}

	if claims.IssuedAt == nil {
		return "", fmt.Errorf("%w: missing issued at", model.ErrorTokenExpiredOrInvalid)
	}
	// iat only has whole seconds, so age is measured in whole seconds too.
	if age := s.now().Truncate(time.Second).Sub(claims.IssuedAt.Time); age > maxAge {
		return "", fmt.Errorf("%w: issued %s ago", model.ErrorTokenExpiredOrInvalid, age.Round(time.Second))
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", model.ErrorTokenExpiredOrInvalid)
	}

	return claims.Subject, nil
}

func (s *Signer) key(purpose string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("bloggr.token:" + purpose))
	return mac.Sum(nil)
}
