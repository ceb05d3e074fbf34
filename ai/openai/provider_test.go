package openai

import (
	"errors"
	"testing"

	"github.com/poiesic/kbot/ai"
	"github.com/poiesic/kbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
	require.NoError(t, err)
	defer provider.Close()

	assert.NotNil(t, provider.Embedder())
	assert.NotNil(t, provider.Generator())
	assert.Equal(t, 768, provider.Dimensions())
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		kind        error
		err         error
		rateLimited bool
	}{
		{"status code", nil, errors.New("API returned unexpected status code: 429"), true},
		{"quota", nil, errors.New("You exceeded your current quota"), true},
		{"rate limit text", core.ErrEmbedding, errors.New("Rate limit reached for requests"), true},
		{"other", core.ErrEmbedding, errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.kind, tt.err)
			assert.ErrorIs(t, got, tt.err)
			assert.Equal(t, tt.rateLimited, errors.Is(got, ai.ErrRateLimited))
			if tt.kind != nil {
				assert.ErrorIs(t, got, tt.kind)
			}
		})
	}
}

func TestToken(t *testing.T) {
	assert.Equal(t, "none", token(&ai.Config{}))
	assert.Equal(t, "sk-1", token(&ai.Config{Token: "sk-1"}))
}
