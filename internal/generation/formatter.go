package generation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Response is the caller-facing shape of a successful generation:
// {"created": ..., "data": [{"url": ...} | {"b64_json": ...}]}.
type Response struct {
	Created int64          `json:"created"`
	Data    []ResponseItem `json:"data"`
}

// ResponseItem is one generated artifact in the response payload.
type ResponseItem struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ResultFormatter converts artifacts into the response shape the caller
// asked for. It runs only on success, outside the rate/queue logic.
// Version: 1.0
type ResultFormatter interface {
	// Format renders the artifact using the requested response format
	// ("url" or "b64_json"; empty defaults to url where available).
	Format(artifact *Artifact, responseFormat string) (*Response, error)
}

// Formatter is the default ResultFormatter.
type Formatter struct {
	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewFormatter creates the default formatter.
func NewFormatter() *Formatter {
	return &Formatter{now: time.Now}
}

// Ensure Formatter implements the ResultFormatter interface.
var _ ResultFormatter = (*Formatter)(nil)

// Format implements ResultFormatter.Format.
func (f *Formatter) Format(artifact *Artifact, responseFormat string) (*Response, error) {
	if artifact == nil || len(artifact.Items) == 0 {
		return nil, fmt.Errorf("%w: empty artifact", ErrInvalidResponse)
	}

	resp := &Response{
		Created: f.now().Unix(),
		Data:    make([]ResponseItem, 0, len(artifact.Items)),
	}

	for _, item := range artifact.Items {
		out := ResponseItem{RevisedPrompt: item.RevisedPrompt}
		switch responseFormat {
		case "b64_json":
			if len(item.Data) == 0 {
				return nil, fmt.Errorf("%w: provider returned no inline data", ErrInvalidResponse)
			}
			out.B64JSON = base64.StdEncoding.EncodeToString(item.Data)
		default:
			if item.URL != "" {
				out.URL = item.URL
			} else if len(item.Data) > 0 {
				// No hosted URL; fall back to embedding.
				out.B64JSON = base64.StdEncoding.EncodeToString(item.Data)
			} else {
				return nil, fmt.Errorf("%w: artifact item carries neither url nor data", ErrInvalidResponse)
			}
		}
		resp.Data = append(resp.Data, out)
	}

	return resp, nil
}

// MarshalResult renders a formatted response as the JSON document stored on
// a completed task.
func MarshalResult(resp *Response) (json.RawMessage, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation result: %w", err)
	}
	return data, nil
}
