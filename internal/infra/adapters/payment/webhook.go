package payment

import (
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"strings"

	"creator-paywall/internal/domain"
)

// Notification is the body of a provider IPN call.
type Notification struct {
	Token  string `json:"token"`
	Status string `json:"status"`
}

// VerifySignature checks a hex HMAC-SHA256 of the raw body in constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(Sign(body, secret))
	return hmac.Equal(got, want)
}

// ParseNotification verifies and decodes an IPN body.
func ParseNotification(body []byte, signature, secret string) (Notification, error) {
	if !VerifySignature(body, signature, secret) {
		return Notification{}, domain.ErrInvalidSignature
	}
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, domain.ErrInvalidArgument
	}
	if n.Token == "" {
		return Notification{}, domain.ErrMissingToken
	}
	return n, nil
}
