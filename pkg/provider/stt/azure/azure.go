// Package azure provides an stt.Provider backed by the Azure Speech
// short-audio REST endpoint.
//
// The clip is POSTed as raw WAV bytes with the subscription key in the
// Ocp-Apim-Subscription-Key header. The response is JSON; the recognised
// utterance is the DisplayText field. A missing or empty DisplayText maps to
// the empty string, never to an error — unrecognised speech is an expected
// outcome, not a fault.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Compile-time check against the interface lives in the registry wiring; the
// package avoids importing stt to stay leaf-level for tests.

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLanguage sets the BCP-47 recognition language query parameter
// (e.g. "en-US"). When empty the endpoint's default applies.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// Client implements the stt provider contract against Azure Speech.
type Client struct {
	endpoint   string
	key        string
	language   string
	httpClient *http.Client
}

// New creates a Client. endpoint is the full recognition URL; key is the
// subscription key. Both must be non-empty.
func New(endpoint, key string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("azure: endpoint must not be empty")
	}
	if key == "" {
		return nil, errors.New("azure: subscription key must not be empty")
	}
	c := &Client{
		endpoint:   endpoint,
		key:        key,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// recognitionResponse is the subset of the Azure short-audio response the
// client depends on.
type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
}

// Transcribe submits the WAV clip and returns the recognised text. An
// unrecognised clip (no DisplayText) returns "" with a nil error.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	endpoint := c.endpoint
	if c.language != "" {
		endpoint += "?language=" + c.language
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("azure: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Accept", "application/json;text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("azure: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("azure: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("azure: read response body: %w", err)
	}

	var result recognitionResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("azure: parse JSON response: %w", err)
	}

	// DisplayText is absent when RecognitionStatus != "Success"; the empty
	// string is the defined no-detection result either way.
	return result.DisplayText, nil
}
