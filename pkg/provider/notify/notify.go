// Package notify provides the client for the contact-notification dispatch
// service.
//
// A trigger produces one POST to /text-contacts carrying the priority tag,
// the filtered contact list, and the last known location (or null). The
// service fans the alert out over carrier e-mail-to-SMS gateways and reports
// the numbers it could not reach; those are logged but do not fail the
// dispatch.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/murmur-app/murmur/pkg/types"
)

const defaultTimeout = 30 * time.Second

// defaultMaxRetries bounds the backoff retry of a failed dispatch POST. An
// alert is time-critical: retry briefly, then report the failure to the
// caller rather than queueing stale alerts.
const defaultMaxRetries = 3

// Dispatcher sends a triggered alert to the notification service.
//
// Implementations must be safe for concurrent use.
type Dispatcher interface {
	// Dispatch notifies contacts with the given priority tag. location may
	// be nil when tracking is disabled or no fix exists yet.
	Dispatch(ctx context.Context, slot types.Slot, contacts []types.Contact, location *types.Location) error
}

// Compile-time assertion that Client implements Dispatcher.
var _ Dispatcher = (*Client)(nil)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries overrides the dispatch retry budget.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// Client posts alerts to the dispatch service's /text-contacts endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

// New creates a Client for the dispatch service at baseURL. baseURL must be
// non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("notify: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// dispatchRequest is the JSON body of a /text-contacts POST.
type dispatchRequest struct {
	Priority string          `json:"priority"`
	Contacts []types.Contact `json:"contacts"`
	Location *types.Location `json:"location"`
}

// dispatchResponse is the JSON shape returned by /text-contacts. The service
// reports failed numbers either as a list or as an "All sent" string, so the
// field is kept raw and decoded leniently.
type dispatchResponse struct {
	Status        string          `json:"status"`
	FailedNumbers json.RawMessage `json:"failed_numbers"`
	Error         string          `json:"error"`
}

// Dispatch sends the alert, retrying transient failures with exponential
// backoff before giving up. Contact phone numbers are normalized to digits
// only before they go on the wire.
func (c *Client) Dispatch(ctx context.Context, slot types.Slot, contacts []types.Contact, location *types.Location) error {
	if len(contacts) == 0 {
		return errors.New("notify: no contacts to dispatch to")
	}

	wire := make([]types.Contact, len(contacts))
	for i, ct := range contacts {
		ct.PhoneNumber = types.DigitsOnly(ct.PhoneNumber)
		wire[i] = ct
	}

	body, err := json.Marshal(dispatchRequest{
		Priority: slot.String(),
		Contacts: wire,
		Location: location,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal request: %w", err)
	}

	op := func() error {
		return c.post(ctx, body)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("notify: dispatch %s alert: %w", slot, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-contacts", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("notify: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notify: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e dispatchResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			// 4xx means the request itself is malformed; retrying won't help.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(fmt.Errorf("notify: server rejected dispatch: %s", e.Error))
			}
			return fmt.Errorf("notify: server returned HTTP %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("notify: server returned HTTP %d", resp.StatusCode)
	}

	var result dispatchResponse
	if err := json.Unmarshal(data, &result); err != nil {
		// The alert went out; a malformed body is only a reporting loss.
		slog.Warn("notify: unparseable dispatch response", "error", err)
		return nil
	}
	if failed := failedNumbers(result.FailedNumbers); len(failed) > 0 {
		slog.Warn("notify: some contacts were not reached", "failed_numbers", failed)
	}
	return nil
}

// failedNumbers decodes the service's failed_numbers field, which is a JSON
// array on partial failure and a status string otherwise.
func failedNumbers(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// MapsLink formats a location as the Google Maps link embedded in alert
// messages, mirroring the dispatch service's own formatting. Used for log
// and status output so operators see what recipients will see.
func MapsLink(location *types.Location) string {
	if location == nil {
		return "Location unavailable"
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", location.Latitude, location.Longitude)
}
