package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/render-api/internal/config"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/generation"
	"google.golang.org/genai"
)

// defaultPollInterval is the delay between checks on a long-running video
// generation operation.
const defaultPollInterval = 5 * time.Second

// Generator implements the generation.Generator interface using Google's
// Gemini API. A fresh API client is built per request so each caller's own
// credential is used upstream; client construction does not perform I/O.
type Generator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config carries the fallback API key used when a request brings no
	// credential of its own
	config config.ProviderConfig

	// pollInterval is the spacing of video operation polls, injectable
	// for tests
	pollInterval time.Duration
}

// NewGenerator creates a new Gemini-backed Generator.
func NewGenerator(logger *slog.Logger, cfg config.ProviderConfig) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}

	return &Generator{
		logger:       logger.With(slog.String("component", "gemini_generator")),
		config:       cfg,
		pollInterval: defaultPollInterval,
	}, nil
}

// Ensure Generator implements the generation.Generator interface.
var _ generation.Generator = (*Generator)(nil)

// Generate implements generation.Generator.Generate.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (*generation.Artifact, error) {
	client, err := g.clientFor(ctx, req.Credential)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "calling Gemini API",
		slog.String("task_type", string(req.Type)),
		slog.String("model", req.Model))

	switch req.Type {
	case domain.TaskTypeImage:
		return g.generateImages(ctx, client, req)
	case domain.TaskTypeComposition:
		return g.composeImage(ctx, client, req)
	case domain.TaskTypeVideo:
		return g.generateVideo(ctx, client, req)
	default:
		return nil, fmt.Errorf("%w: unsupported task type %q", domain.ErrInvalidTaskType, req.Type)
	}
}

// clientFor builds an API client bound to the request credential, falling
// back to the configured server key.
func (g *Generator) clientFor(ctx context.Context, credential string) (*genai.Client, error) {
	key := credential
	if key == "" {
		key = g.config.GeminiAPIKey
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no API credential available", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrProviderFailure, err)
	}
	return client, nil
}

// generateImages runs a text-to-image request against the Imagen endpoint.
func (g *Generator) generateImages(
	ctx context.Context,
	client *genai.Client,
	req generation.Request,
) (*generation.Artifact, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: int32(artifactCount(req.Options.N)),
	}
	if ratio := aspectRatio(req.Options.Size); ratio != "" {
		cfg.AspectRatio = ratio
	}

	resp, err := client.Models.GenerateImages(ctx, req.Model, req.Prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrProviderFailure, err)
	}

	return artifactFromImages(resp)
}

// composeImage runs an image-editing request: the prompt plus the supplied
// source images go through a Gemini model with image output enabled.
func (g *Generator) composeImage(
	ctx context.Context,
	client *genai.Client,
	req generation.Request,
) (*generation.Artifact, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, src := range req.Options.InputImages {
		part, err := inputImagePart(src)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	contents := []*genai.Content{{Parts: parts}}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrProviderFailure, err)
	}

	return artifactFromContent(resp)
}

// generateVideo starts a Veo operation and polls it to completion. The poll
// loop is bounded only by the caller's context; the queue layer owns the
// overall deadline.
func (g *Generator) generateVideo(
	ctx context.Context,
	client *genai.Client,
	req generation.Request,
) (*generation.Artifact, error) {
	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: int32(artifactCount(req.Options.N)),
	}
	if req.Options.DurationSeconds > 0 {
		cfg.DurationSeconds = genai.Ptr(int32(req.Options.DurationSeconds))
	}

	op, err := client.Models.GenerateVideos(ctx, req.Model, req.Prompt, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrProviderFailure, err)
	}

	for !op.Done {
		g.logger.DebugContext(ctx, "video operation pending",
			slog.String("operation", op.Name))
		select {
		case <-time.After(g.pollInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrProviderFailure, ctx.Err())
		}

		op, err = client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to poll video operation: %v",
				generation.ErrProviderFailure, err)
		}
	}

	return artifactFromVideos(op)
}

// artifactCount normalizes the requested artifact count; zero means one.
func artifactCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
