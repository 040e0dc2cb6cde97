package generation

import (
	"context"

	"github.com/phrazzld/render-api/internal/domain"
)

// Request describes one upstream generation call.
type Request struct {
	// Type selects the generation kind (image, composition, video).
	Type domain.TaskType

	// Model is the upstream model identifier.
	Model string

	// Prompt is the text prompt.
	Prompt string

	// Credential is the caller's upstream account token. It is passed
	// through opaquely and never logged or persisted.
	Credential string

	// Options carries type-specific settings.
	Options Options
}

// Options are the type-specific generation settings.
type Options struct {
	// Size is the requested image dimensions, e.g. "1024x1024".
	Size string

	// N is the number of artifacts requested; zero means one.
	N int

	// DurationSeconds applies to video generation.
	DurationSeconds int

	// InputImages are source images for composition requests, as URLs or
	// base64 payloads.
	InputImages []string

	// ResponseFormat selects "url" or "b64_json" output.
	ResponseFormat string
}

// Artifact is the provider-agnostic descriptor of a generation result.
type Artifact struct {
	// ProviderID is the upstream identifier of the generation, if any.
	ProviderID string

	// Items are the produced outputs, one per requested artifact.
	Items []ArtifactItem
}

// ArtifactItem is a single produced image or video.
type ArtifactItem struct {
	// URL points at hosted output, when the provider returns one.
	URL string

	// Data is the raw output when the provider returns bytes inline.
	Data []byte

	// MimeType describes Data or the resource behind URL.
	MimeType string

	// RevisedPrompt is the provider's rewritten prompt, if reported.
	RevisedPrompt string
}

// Generator defines the interface for performing the upstream generation
// call. This interface is the boundary between the admission/execution core
// and the external provider, following the hexagonal architecture pattern.
// Version: 1.0
type Generator interface {
	// Generate performs the upstream call and returns an artifact
	// descriptor, or a provider error. The error is treated opaquely by
	// the core: it is recorded on the task verbatim and never retried at
	// this layer.
	Generate(ctx context.Context, req Request) (*Artifact, error)
}
