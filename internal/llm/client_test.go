package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/backend/pkg/config"
)

func TestFactoryBuildsPerCredentialClients(t *testing.T) {
	factory := NewFactory(config.LLMConfig{
		BaseURL:        "https://example.test/v1/",
		Model:          "gemini-2.0-flash",
		EmbeddingModel: "text-embedding-004",
		Temperature:    0.3,
		MaxTokens:      2048,
		TimeoutSec:     60,
	})

	client := factory.ClientFor("sk-alice")
	require.NotNil(t, client)
	assert.Equal(t, "gemini-2.0-flash", client.model)
	assert.Equal(t, "text-embedding-004", client.embeddingModel)
	assert.Equal(t, 60*time.Second, client.timeout)

	assert.NotSame(t, client, factory.ClientFor("sk-bob"))
	assert.Equal(t, "gemini-2.0-flash", factory.ModelName())
}

func TestErrorTypesUnwrap(t *testing.T) {
	cause := errors.New("401 unauthorized")

	var err error = &EmbeddingError{Err: cause}
	assert.ErrorIs(t, err, cause)

	err = &GenerationError{Err: cause}
	assert.ErrorIs(t, err, cause)
}
