package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidToken is returned for malformed or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Provider supplies the stable local user identifier for a session token.
// It stands in for the platform's auth system, which is outside this
// service.
type Provider interface {
	Verify(token string) (userID int, err error)
	Issue(userID int) (string, error)
}

// HMACProvider signs tokens of the form "<uid>.<hex hmac-sha256>".
type HMACProvider struct {
	secret []byte
}

// NewHMACProvider builds a provider from the shared secret.
func NewHMACProvider(secret string) *HMACProvider {
	return &HMACProvider{secret: []byte(secret)}
}

// Issue mints a token for the user.
func (p *HMACProvider) Issue(userID int) (string, error) {
	if userID <= 0 {
		return "", errors.New("invalid user id")
	}
	payload := strconv.Itoa(userID)
	return payload + "." + p.sign(payload), nil
}

// Verify checks the signature and returns the user id.
func (p *HMACProvider) Verify(token string) (int, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return 0, ErrInvalidToken
	}
	if !hmac.Equal([]byte(p.sign(payload)), []byte(sig)) {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.Atoi(payload)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

func (p *HMACProvider) sign(payload string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
