package speaker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Verification model extraction is slow on first use; give the service room.
const defaultTimeout = 60 * time.Second

// Compile-time assertion that Client implements Provider.
var _ Provider = (*Client)(nil)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client talks to the speaker-verification service over HTTP. The service
// exposes /set-speaker-vector (enrollment), /verify-speaker (comparison) and
// the /load-models and /unload-models maintenance endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the service at baseURL
// (e.g. "http://192.168.1.10:5000"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("speaker: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// enrollResponse is the JSON shape returned by /set-speaker-vector. The
// speaker vector arrives as a raw JSON array; it is stored opaquely and never
// interpreted client-side.
type enrollResponse struct {
	SpeakerVector json.RawMessage `json:"speaker_vector"`
	Error         string          `json:"error"`
}

// Enroll uploads the three phrase clips as multipart fields audio1..audio3
// and returns the serialized speaker vector as the voice-print reference.
func (c *Client) Enroll(ctx context.Context, clips [3][]byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for i, clip := range clips {
		field := fmt.Sprintf("audio%d", i+1)
		fw, err := mw.CreateFormFile(field, field+".wav")
		if err != nil {
			return "", fmt.Errorf("speaker: create form file %s: %w", field, err)
		}
		if _, err := fw.Write(clip); err != nil {
			return "", fmt.Errorf("speaker: write %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("speaker: close multipart writer: %w", err)
	}

	data, err := c.post(ctx, "/set-speaker-vector", mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}

	var result enrollResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("speaker: parse enrollment response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("speaker: enrollment rejected: %s", result.Error)
	}
	if len(result.SpeakerVector) == 0 || string(result.SpeakerVector) == "null" {
		return "", errors.New("speaker: enrollment response missing speaker_vector")
	}
	return string(result.SpeakerVector), nil
}

// verifyResponse is the JSON shape returned by /verify-speaker. The verdict
// is the literal string "True" for a match; anything else is a non-match.
type verifyResponse struct {
	Verified       string  `json:"verified"`
	CosineDistance float64 `json:"cosine_distance"`
	Error          string  `json:"error"`
}

// Verify submits wav as the multipart field `audio` and maps the service's
// string verdict to a boolean.
func (c *Client) Verify(ctx context.Context, wav []byte) (bool, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return false, fmt.Errorf("speaker: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return false, fmt.Errorf("speaker: write wav data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return false, fmt.Errorf("speaker: close multipart writer: %w", err)
	}

	data, err := c.post(ctx, "/verify-speaker", mw.FormDataContentType(), &body)
	if err != nil {
		return false, err
	}

	var result verifyResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return false, fmt.Errorf("speaker: parse verification response: %w", err)
	}
	if result.Error != "" {
		return false, fmt.Errorf("speaker: verification rejected: %s", result.Error)
	}
	// Missing or malformed verdict is a non-match, not a fault.
	return result.Verified == "True", nil
}

// LoadModels asks the service to load its recognition and speaker models into
// memory. Called once at daemon start so the first segment does not pay the
// model load latency.
func (c *Client) LoadModels(ctx context.Context) error {
	return c.get(ctx, "/load-models")
}

// UnloadModels asks the service to release its models. Called at shutdown.
func (c *Client) UnloadModels(ctx context.Context) error {
	return c.get(ctx, "/unload-models")
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("speaker: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speaker: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speaker: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// Error bodies are JSON {"error": ...}; surface them when present.
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("speaker: server returned HTTP %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("speaker: server returned HTTP %d", resp.StatusCode)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("speaker: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("speaker: http request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speaker: server returned HTTP %d", resp.StatusCode)
	}
	return nil
}
