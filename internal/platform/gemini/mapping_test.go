package gemini

import (
	"encoding/base64"
	"testing"

	"github.com/phrazzld/render-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestArtifactFromImages(t *testing.T) {
	resp := &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{
			{
				Image:          &genai.Image{ImageBytes: []byte("png-bytes"), MIMEType: "image/png"},
				EnhancedPrompt: "a very detailed harbor",
			},
			{
				Image: &genai.Image{GCSURI: "gs://bucket/out.png", MIMEType: "image/png"},
			},
		},
	}

	artifact, err := artifactFromImages(resp)
	require.NoError(t, err)
	require.Len(t, artifact.Items, 2)
	assert.Equal(t, []byte("png-bytes"), artifact.Items[0].Data)
	assert.Equal(t, "a very detailed harbor", artifact.Items[0].RevisedPrompt)
	assert.Equal(t, "gs://bucket/out.png", artifact.Items[1].URL)
}

func TestArtifactFromImagesFiltered(t *testing.T) {
	resp := &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{
			{RAIFilteredReason: "safety"},
		},
	}

	_, err := artifactFromImages(resp)
	assert.ErrorIs(t, err, generation.ErrContentBlocked)
}

func TestArtifactFromImagesEmpty(t *testing.T) {
	_, err := artifactFromImages(nil)
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)

	_, err = artifactFromImages(&genai.GenerateImagesResponse{})
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}

func TestArtifactFromContent(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "here is your edit"},
						{InlineData: &genai.Blob{Data: []byte("edited"), MIMEType: "image/png"}},
					},
				},
			},
		},
	}

	artifact, err := artifactFromContent(resp)
	require.NoError(t, err)
	require.Len(t, artifact.Items, 1)
	assert.Equal(t, []byte("edited"), artifact.Items[0].Data)
	assert.Equal(t, "image/png", artifact.Items[0].MimeType)
}

func TestArtifactFromContentSafetyStop(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{FinishReason: genai.FinishReasonSafety},
		},
	}

	_, err := artifactFromContent(resp)
	assert.ErrorIs(t, err, generation.ErrContentBlocked)
}

func TestArtifactFromContentTextOnly(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "sorry, no image"}}}},
		},
	}

	_, err := artifactFromContent(resp)
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}

func TestArtifactFromVideos(t *testing.T) {
	op := &genai.GenerateVideosOperation{
		Name: "operations/abc123",
		Done: true,
		Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{
				{Video: &genai.Video{URI: "https://storage.example.com/v.mp4", MIMEType: "video/mp4"}},
			},
		},
	}

	artifact, err := artifactFromVideos(op)
	require.NoError(t, err)
	assert.Equal(t, "operations/abc123", artifact.ProviderID)
	require.Len(t, artifact.Items, 1)
	assert.Equal(t, "https://storage.example.com/v.mp4", artifact.Items[0].URL)
}

func TestArtifactFromVideosEmpty(t *testing.T) {
	_, err := artifactFromVideos(&genai.GenerateVideosOperation{Done: true})
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}

func TestInputImagePart(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("raw-image"))

	t.Run("hosted url", func(t *testing.T) {
		part, err := inputImagePart("https://example.com/cat.jpg")
		require.NoError(t, err)
		require.NotNil(t, part.FileData)
		assert.Equal(t, "https://example.com/cat.jpg", part.FileData.FileURI)
		assert.Equal(t, "image/jpeg", part.FileData.MIMEType)
	})

	t.Run("data uri", func(t *testing.T) {
		part, err := inputImagePart("data:image/webp;base64," + payload)
		require.NoError(t, err)
		require.NotNil(t, part.InlineData)
		assert.Equal(t, []byte("raw-image"), part.InlineData.Data)
		assert.Equal(t, "image/webp", part.InlineData.MIMEType)
	})

	t.Run("bare base64", func(t *testing.T) {
		part, err := inputImagePart(payload)
		require.NoError(t, err)
		require.NotNil(t, part.InlineData)
		assert.Equal(t, []byte("raw-image"), part.InlineData.Data)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := inputImagePart("!!not base64!!")
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})

	t.Run("malformed data uri", func(t *testing.T) {
		_, err := inputImagePart("data:image/png," + payload)
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})
}

func TestAspectRatio(t *testing.T) {
	cases := []struct {
		size string
		want string
	}{
		{"1024x1024", "1:1"},
		{"1792x1024", "16:9"},
		{"1024x1792", "9:16"},
		{"1200x900", "4:3"},
		{"900x1200", "3:4"},
		{"", ""},
		{"banana", ""},
		{"0x100", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, aspectRatio(tc.size), "size %q", tc.size)
	}
}
