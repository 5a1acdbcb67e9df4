// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/samber/oops"
)

// TokenBytes is the entropy of every opaque token (reset and session).
// 32 bytes = 64 hex chars.
const TokenBytes = 32

// TokenGenerator produces unpredictable opaque tokens.
type TokenGenerator interface {
	// Generate returns a fresh hex-encoded token. An error means the entropy
	// source failed; callers abort instead of falling back.
	Generate() (string, error)
}

// RandomTokenGenerator reads tokens from a cryptographic random source.
type RandomTokenGenerator struct {
	source io.Reader
}

// NewTokenGenerator returns a generator backed by crypto/rand.
func NewTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{source: rand.Reader}
}

// NewTokenGeneratorFromReader returns a generator reading from r.
func NewTokenGeneratorFromReader(r io.Reader) *RandomTokenGenerator {
	return &RandomTokenGenerator{source: r}
}

// Generate returns TokenBytes of randomness, hex-encoded.
func (g *RandomTokenGenerator) Generate() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "read random bytes").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken computes the SHA256 hex digest stored in place of a plaintext token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
