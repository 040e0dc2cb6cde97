package gemini

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/phrazzld/render-api/internal/generation"
	"google.golang.org/genai"
)

// artifactFromImages converts an Imagen response into an artifact.
func artifactFromImages(resp *genai.GenerateImagesResponse) (*generation.Artifact, error) {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("%w: no images generated", generation.ErrInvalidResponse)
	}

	artifact := &generation.Artifact{
		Items: make([]generation.ArtifactItem, 0, len(resp.GeneratedImages)),
	}
	for _, img := range resp.GeneratedImages {
		if img == nil {
			continue
		}
		if img.RAIFilteredReason != "" {
			return nil, fmt.Errorf("%w: %s", generation.ErrContentBlocked, img.RAIFilteredReason)
		}
		if img.Image == nil {
			continue
		}
		artifact.Items = append(artifact.Items, generation.ArtifactItem{
			URL:           img.Image.GCSURI,
			Data:          img.Image.ImageBytes,
			MimeType:      img.Image.MIMEType,
			RevisedPrompt: img.EnhancedPrompt,
		})
	}
	if len(artifact.Items) == 0 {
		return nil, fmt.Errorf("%w: response carried no image payloads", generation.ErrInvalidResponse)
	}
	return artifact, nil
}

// artifactFromContent extracts inline image parts from a Gemini content
// response. Text parts are ignored; the caller asked for an image.
func artifactFromContent(resp *genai.GenerateContentResponse) (*generation.Artifact, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: response stopped by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	artifact := &generation.Artifact{}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		artifact.Items = append(artifact.Items, generation.ArtifactItem{
			Data:     part.InlineData.Data,
			MimeType: part.InlineData.MIMEType,
		})
	}
	if len(artifact.Items) == 0 {
		return nil, fmt.Errorf("%w: response carried no image parts", generation.ErrInvalidResponse)
	}
	return artifact, nil
}

// artifactFromVideos converts a finished Veo operation into an artifact.
func artifactFromVideos(op *genai.GenerateVideosOperation) (*generation.Artifact, error) {
	if op == nil || op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("%w: no videos generated", generation.ErrInvalidResponse)
	}

	artifact := &generation.Artifact{ProviderID: op.Name}
	for _, vid := range op.Response.GeneratedVideos {
		if vid == nil || vid.Video == nil {
			continue
		}
		artifact.Items = append(artifact.Items, generation.ArtifactItem{
			URL:      vid.Video.URI,
			Data:     vid.Video.VideoBytes,
			MimeType: vid.Video.MIMEType,
		})
	}
	if len(artifact.Items) == 0 {
		return nil, fmt.Errorf("%w: response carried no video payloads", generation.ErrInvalidResponse)
	}
	return artifact, nil
}

// inputImagePart turns a source image reference into a request part. Hosted
// images pass through as file references; everything else must be base64,
// either as a data URI or a bare payload.
func inputImagePart(src string) (*genai.Part, error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return genai.NewPartFromURI(src, mimeFromURL(src)), nil

	case strings.HasPrefix(src, "data:"):
		mime, payload, ok := splitDataURI(src)
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URI input image", generation.ErrInvalidConfig)
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: input image is not valid base64: %v",
				generation.ErrInvalidConfig, err)
		}
		return genai.NewPartFromBytes(data, mime), nil

	default:
		data, err := base64.StdEncoding.DecodeString(src)
		if err != nil {
			return nil, fmt.Errorf("%w: input image is not valid base64: %v",
				generation.ErrInvalidConfig, err)
		}
		return genai.NewPartFromBytes(data, "image/png"), nil
	}
}

// splitDataURI parses "data:<mime>;base64,<payload>".
func splitDataURI(src string) (mime, payload string, ok bool) {
	rest := strings.TrimPrefix(src, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	return strings.TrimSuffix(meta, ";base64"), payload, true
}

// mimeFromURL guesses a MIME type from the URL path extension.
func mimeFromURL(url string) string {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch {
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	default:
		return "image/png"
	}
}

// supportedRatios are the aspect ratios the image endpoints accept, with
// their numeric values.
var supportedRatios = []struct {
	name  string
	value float64
}{
	{"1:1", 1},
	{"3:4", 3.0 / 4.0},
	{"4:3", 4.0 / 3.0},
	{"9:16", 9.0 / 16.0},
	{"16:9", 16.0 / 9.0},
}

// aspectRatio maps a WxH size string onto the closest supported aspect
// ratio. Returns empty when the size is absent or unparseable, leaving the
// provider default in place.
func aspectRatio(size string) string {
	w, h, ok := parseSize(size)
	if !ok {
		return ""
	}

	target := float64(w) / float64(h)
	best := ""
	bestDiff := math.MaxFloat64
	for _, r := range supportedRatios {
		if diff := math.Abs(r.value - target); diff < bestDiff {
			best = r.name
			bestDiff = diff
		}
	}
	return best
}

// parseSize parses "1024x1024" style dimensions.
func parseSize(size string) (w, h int, ok bool) {
	left, right, found := strings.Cut(size, "x")
	if !found {
		return 0, 0, false
	}
	w, err := strconv.Atoi(left)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err = strconv.Atoi(right)
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
