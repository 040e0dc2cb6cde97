package gemini

import (
	"context"
	"testing"

	"github.com/phrazzld/render-api/internal/config"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/generation"
	"github.com/phrazzld/render-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorNilLogger(t *testing.T) {
	gen, err := NewGenerator(nil, config.ProviderConfig{})
	assert.Nil(t, gen)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateWithoutCredential(t *testing.T) {
	log, _ := logger.NewTestLogger()
	gen, err := NewGenerator(log, config.ProviderConfig{})
	require.NoError(t, err)

	// No per-request credential and no configured fallback key.
	_, err = gen.Generate(context.Background(), generation.Request{
		Type:   domain.TaskTypeImage,
		Model:  "imagen-3.0-generate-002",
		Prompt: "a harbor",
	})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateUnsupportedType(t *testing.T) {
	log, _ := logger.NewTestLogger()
	gen, err := NewGenerator(log, config.ProviderConfig{GeminiAPIKey: "test-key"})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), generation.Request{
		Type:       domain.TaskType("hologram"),
		Model:      "imagen-3.0-generate-002",
		Prompt:     "a harbor",
		Credential: "sk-user-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTaskType)
}

func TestArtifactCount(t *testing.T) {
	assert.Equal(t, 1, artifactCount(0))
	assert.Equal(t, 1, artifactCount(-3))
	assert.Equal(t, 4, artifactCount(4))
}
