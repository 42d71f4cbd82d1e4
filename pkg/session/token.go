package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/entrhq/pagepilot/pkg/storage"
)

const signingKeyLength = 32

// errInvalidToken is returned when a session token fails verification.
var errInvalidToken = errors.New("invalid session token")

// tokenIssuer mints and verifies HS256 session tokens.
type tokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// mint returns a token for userID valid for ttl. Times are truncated to the
// token's precision so the stored session and the claims expire together.
func (t *tokenIssuer) mint(userID string, ttl time.Duration) (string, time.Time, time.Time, error) {
	issued := t.now().Truncate(jwt.TimePrecision)
	expires := issued.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.New().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, issued, expires, nil
}

// verify checks the signature and expiry of token and returns its subject.
// The leeway lets a token live through its exp second; Session.Expired
// decides the exact cutoff.
func (t *tokenIssuer) verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now), jwt.WithLeeway(jwt.TimePrecision))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// loadSigningKey returns the persisted signing key, creating it on first use.
func loadSigningKey(ctx context.Context, kv storage.Store) ([]byte, error) {
	var key []byte
	err := kv.Update(ctx, keySigningKey, func(current []byte) ([]byte, error) {
		if current != nil {
			return current, json.Unmarshal(current, &key)
		}
		key = make([]byte, signingKeyLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		return json.Marshal(key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	return key, nil
}
