// Package auth issues and verifies stateless HMAC-signed access tokens.
// A token is base64url(claims JSON) + "." + base64url(HMAC-SHA256);
// possession of the signing secret is the only server-side state.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Claims is the payload carried inside an access token.
type Claims struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	JTI     string `json:"jti"`
	Exp     int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

func IssueToken(secret []byte, claims Claims) (string, error) {
	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	mac := computeMAC(secret, encoded)
	return encoded + "." + base64.RawURLEncoding.EncodeToString(mac), nil
}

func ParseToken(secret []byte, token string) (Claims, error) {
	encoded, sig, found := strings.Cut(token, ".")
	if !found {
		return Claims{}, ErrInvalidToken
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, computeMAC(secret, encoded)) {
		return Claims{}, ErrInvalidToken
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(body, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if err := claims.validate(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (c Claims) validate() error {
	if c.Sub == "" || c.Name == "" || c.JTI == "" || c.Exp == 0 {
		return ErrInvalidToken
	}
	if time.Now().Unix() >= c.Exp {
		return ErrExpiredToken
	}
	return nil
}

func computeMAC(secret []byte, payload string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// HashToken returns the hex SHA-256 of a refresh token. Refresh tokens
// are stored server-side only as hashes.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
