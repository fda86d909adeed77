package pandadoc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	EventDocumentStateChanged = "document_state_changed"
	StatusCompleted           = "document.completed"
)

// WebhookEvent is one entry of the webhook payload array.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"data"`
}

// IsCompleted reports whether the event signals a fully signed document.
func (e WebhookEvent) IsCompleted() bool {
	return e.Event == EventDocumentStateChanged && e.Data.Status == StatusCompleted
}

// VerifySignature checks the hex HMAC-SHA256 of body under key.
func VerifySignature(key string, body []byte, signature string) bool {
	if key == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign returns the hex signature PandaDoc would send for body.
func Sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
