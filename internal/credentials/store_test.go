package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_OverlayShadowsBase(t *testing.T) {
	s := NewStore(map[string]string{"openai": "base-key"})

	v, ok := s.Get("openai")
	assert.True(t, ok)
	assert.Equal(t, "base-key", v)

	s.Set("openai", "overlay-key")

	v, ok = s.Get("openai")
	assert.True(t, ok)
	assert.Equal(t, "overlay-key", v)
}

func TestStore_IsConfigured(t *testing.T) {
	s := NewStore(map[string]string{"openai": ""})
	assert.False(t, s.IsConfigured("openai"))
	assert.False(t, s.IsConfigured("elevenlabs"))

	s.Set("elevenlabs", "key")
	assert.True(t, s.IsConfigured("elevenlabs"))
}

func TestStore_BaseMapIsCopied(t *testing.T) {
	base := map[string]string{"openai": "base-key"}
	s := NewStore(base)

	base["openai"] = "mutated"

	v, _ := s.Get("openai")
	assert.Equal(t, "base-key", v)
}
