// Package twilio is a thin provider client for SMS and voice. It speaks the
// provider's REST dialect directly: HTTP basic auth, form-encoded bodies.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hvac-booking-core/config"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

var ErrNotConfigured = errors.New("twilio account credentials or sender number are missing")

// Provider is the injectable SMS/voice interface consumed by notification
// dispatch and the retry worker.
type Provider interface {
	SendSMS(ctx context.Context, to, body string) (sid string, err error)
	MakeCall(ctx context.Context, to, twiml string) (sid string, err error)
	FromNumber() string
}

type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.TwilioConfig) *Client {
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the client at a test server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) FromNumber() string {
	return c.from
}

func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)
	return c.post(ctx, "Messages.json", form)
}

func (c *Client) MakeCall(ctx context.Context, to, twiml string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Twiml", twiml)
	return c.post(ctx, "Calls.json", form)
}

func (c *Client) post(ctx context.Context, resource string, form url.Values) (string, error) {
	if c.accountSID == "" || c.authToken == "" || c.from == "" {
		return "", ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/%s", c.baseURL, c.accountSID, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("twilio %s failed: %s", resource, apiErr.Message)
		}
		return "", fmt.Errorf("twilio %s failed with status %d", resource, resp.StatusCode)
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("twilio %s returned malformed response: %w", resource, err)
	}
	return out.SID, nil
}
