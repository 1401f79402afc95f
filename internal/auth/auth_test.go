package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopAuthAcceptsEverything(t *testing.T) {
	a := NoopAuth{}
	assert.True(t, a.Validate("bot", ""))
	assert.True(t, a.Validate("", "anything"))
}

func TestStaticAuth(t *testing.T) {
	a := NewStaticAuth("sekrit")
	assert.True(t, a.Validate("bot", "sekrit"))
	assert.False(t, a.Validate("bot", "wrong"))
	assert.False(t, a.Validate("bot", ""))
	assert.False(t, a.Validate("", "sekrit"), "bot id is required")
}
