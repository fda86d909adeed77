package types

// ErrorEnvelope is the failure body: {"ok":false,"error":"<code>",...}.
type ErrorEnvelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}
