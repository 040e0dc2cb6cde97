// Package gemini implements the generation.Generator interface on top of
// Google's Gemini API. It maps provider-agnostic generation requests onto the
// Imagen, Gemini image-out, and Veo endpoints and converts their responses
// into artifact descriptors.
package gemini
