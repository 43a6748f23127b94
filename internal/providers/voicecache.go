package providers

import (
	"context"
	"sync"

	"github.com/book-expert/tts-pipeline/internal/core"
)

// voiceCache memoizes one provider's voice list after its first
// successful fetch, per the capability contract's "cached per-provider
// after first success" requirement. A failed fetch is never cached, so
// the next call retries against the vendor.
type voiceCache struct {
	mu     sync.Mutex
	voices []core.Voice
	cached bool
}

// get returns the cached voice list if present, otherwise calls fetch
// and caches the result on success.
func (c *voiceCache) get(ctx context.Context, fetch func(context.Context) ([]core.Voice, error)) ([]core.Voice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached {
		return c.voices, nil
	}

	voices, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.voices = voices
	c.cached = true

	return c.voices, nil
}
