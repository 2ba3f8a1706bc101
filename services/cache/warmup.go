package cache

import (
	"go.uber.org/zap"

	"github.com/nlieb/chatmux/services/providers"
)

// warmupModel tags seeded entries so they are distinguishable from real
// provider responses in diagnostics
const warmupModel = "warmup"

// warmupSeed is the fixed set of canonical exchanges preloaded at startup.
// Questions must pass ShouldCache; keep them free of volatile phrasing.
var warmupSeed = []struct {
	question string
	answer   string
}{
	{"hello", "Hello! How can I help you?"},
	{"hi", "Hi there! What can I do for you?"},
	{"thanks", "You're welcome! Anything else I can help with?"},
	{"help", "Ask me a question and I will route it to the best available model. Use deep mode for questions that need careful reasoning."},
	{"what can you do", "I answer questions by routing them across several language-model providers, with fast and deep answering modes."},
}

// Warmup seeds the canonical exchanges with the long warmup TTL. Idempotent:
// only the first call inserts. Returns the number of entries seeded.
func (c *Cache) Warmup() int {
	c.mu.Lock()
	if c.warmed {
		c.mu.Unlock()
		return 0
	}
	c.warmed = true
	c.mu.Unlock()

	seeded := 0
	for _, seed := range warmupSeed {
		if !c.ShouldCache(seed.question, string(providers.ModeFast)) {
			continue
		}
		c.Set(seed.question, string(providers.ModeFast), &providers.NormalizedResponse{
			Content: seed.answer,
			Mode:    providers.ModeFast,
			Model:   warmupModel,
		}, c.config.WarmupTTL)
		seeded++
	}

	c.logger.Info("cache warmed", zap.Int("entries", seeded))
	return seeded
}
