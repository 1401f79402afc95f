package auth

import "crypto/subtle"

// BotAuth validates bot credentials presented during identification.
type BotAuth interface {
	Validate(botID, apiKey string) bool
}

// NoopAuth accepts every identification. The default for local play.
type NoopAuth struct{}

func (NoopAuth) Validate(botID, apiKey string) bool { return true }

// StaticAuth accepts any bot presenting the shared API key. Comparison is
// constant-time.
type StaticAuth struct {
	key []byte
}

// NewStaticAuth creates a StaticAuth for the given shared key.
func NewStaticAuth(key string) *StaticAuth {
	return &StaticAuth{key: []byte(key)}
}

func (a *StaticAuth) Validate(botID, apiKey string) bool {
	if botID == "" {
		return false
	}
	return subtle.ConstantTimeCompare(a.key, []byte(apiKey)) == 1
}
