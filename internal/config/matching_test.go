package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchingConfigIsValid(t *testing.T) {
	assert.NoError(t, ValidateMatchingConfig(DefaultMatchingConfig()))
}

func TestValidateMatchingConfig(t *testing.T) {
	base := DefaultMatchingConfig()

	tests := []struct {
		name   string
		mutate func(*MatchingConfig)
	}{
		{"reject floor zero", func(c *MatchingConfig) { c.RejectFloor = 0 }},
		{"auto accept above one", func(c *MatchingConfig) { c.AutoAcceptFloor = 1.2 }},
		{"advisory below reject", func(c *MatchingConfig) { c.AdvisoryFloor = 0.1 }},
		{"advisory above auto accept", func(c *MatchingConfig) { c.AdvisoryFloor = 0.99 }},
		{"negative dimension tolerance", func(c *MatchingConfig) { c.DimensionTolerancePct = -0.1 }},
		{"escape hatch too wide", func(c *MatchingConfig) { c.EscapeHatchLimit = 3 }},
		{"zero workers", func(c *MatchingConfig) { c.Workers = 0 }},
		{"zero item timeout", func(c *MatchingConfig) { c.ItemTimeoutMS = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, ValidateMatchingConfig(cfg))
		})
	}
}

func TestStaticHolderReturnsStoredConfig(t *testing.T) {
	cfg := DefaultMatchingConfig()
	cfg.AutoAcceptFloor = 0.9

	holder := NewStaticMatchingConfigHolder(cfg)
	assert.Equal(t, 0.9, holder.Get().AutoAcceptFloor)
}
