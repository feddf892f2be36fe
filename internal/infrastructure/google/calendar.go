package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	calendarID     = "primary"

	// Inline booking-path calls get the short budget; background calls the long one.
	inlineCallTimeout  = 2500 * time.Millisecond
	defaultCallTimeout = 10 * time.Second

	freebusyBudget = 4500 * time.Millisecond
	lookupBudget   = 2500 * time.Millisecond

	retryBaseInterval = 250 * time.Millisecond
	retryMaxInterval  = 1500 * time.Millisecond
	retryMaxAttempts  = 3
)

// BusyInterval is one busy window returned by freebusy, UTC.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Event is a calendar event as returned by the list endpoint.
type Event struct {
	ID             string
	Start          time.Time
	End            time.Time
	StartDate      string // set instead of Start for all-day events
	EndDate        string
	IdempotencyKey string
}

// EventInput describes an event to insert.
type EventInput struct {
	Summary        string
	Description    string
	Start          time.Time
	End            time.Time
	Timezone       string
	IdempotencyKey string
}

// Calendar is the external-calendar adapter contract.
type Calendar interface {
	FreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]BusyInterval, error)
	InsertEvent(ctx context.Context, input EventInput) (string, error)
	ListEventsByIdempotencyKey(ctx context.Context, timeMin, timeMax time.Time, key string) ([]Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Client talks to the calendar REST API through an oauth2-authenticated
// http.Client. Construct one per tenant per orchestration; never share.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logrus.Logger
}

func NewClient(ctx context.Context, ts oauth2.TokenSource, log *logrus.Logger) *Client {
	return &Client{
		httpClient: oauth2.NewClient(ctx, ts),
		baseURL:    defaultBaseURL,
		log:        log,
	}
}

// WithBaseURL points the client at a test server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) FreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]BusyInterval, error) {
	var intervals []BusyInterval
	err := c.withRetry(ctx, "calendar.freebusy", inlineCallTimeout, freebusyBudget, func(ctx context.Context) error {
		body := map[string]interface{}{
			"timeMin": timeMin.UTC().Format(time.RFC3339),
			"timeMax": timeMax.UTC().Format(time.RFC3339),
			"items":   []map[string]string{{"id": calendarID}},
		}
		var out struct {
			Calendars map[string]struct {
				Busy []struct {
					Start time.Time `json:"start"`
					End   time.Time `json:"end"`
				} `json:"busy"`
			} `json:"calendars"`
		}
		if err := c.doJSON(ctx, "calendar.freebusy", http.MethodPost, c.baseURL+"/freeBusy", body, &out); err != nil {
			return err
		}
		intervals = intervals[:0]
		for _, cal := range out.Calendars {
			for _, b := range cal.Busy {
				intervals = append(intervals, BusyInterval{Start: b.Start.UTC(), End: b.End.UTC()})
			}
		}
		return nil
	})
	return intervals, err
}

// InsertEvent performs a single attempt; the orchestrator owns the two-attempt
// policy with the idempotency-key lookup between attempts.
func (c *Client) InsertEvent(ctx context.Context, input EventInput) (string, error) {
	body := map[string]interface{}{
		"summary":     input.Summary,
		"description": input.Description,
		"start": map[string]string{
			"dateTime": input.Start.Format(time.RFC3339),
			"timeZone": input.Timezone,
		},
		"end": map[string]string{
			"dateTime": input.End.Format(time.RFC3339),
			"timeZone": input.Timezone,
		},
		"extendedProperties": map[string]interface{}{
			"private": map[string]string{"idempotencyKey": input.IdempotencyKey},
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	err := c.observe(ctx, "calendar.events.insert", inlineCallTimeout, func(ctx context.Context) error {
		return c.doJSON(ctx, "calendar.events.insert", http.MethodPost,
			fmt.Sprintf("%s/calendars/%s/events", c.baseURL, calendarID), body, &out)
	})
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) ListEventsByIdempotencyKey(ctx context.Context, timeMin, timeMax time.Time, key string) ([]Event, error) {
	var events []Event
	err := c.withRetry(ctx, "calendar.events.list", inlineCallTimeout, lookupBudget, func(ctx context.Context) error {
		q := url.Values{}
		q.Set("timeMin", timeMin.UTC().Format(time.RFC3339))
		q.Set("timeMax", timeMax.UTC().Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("privateExtendedProperty", "idempotencyKey="+key)

		var out struct {
			Items []struct {
				ID    string `json:"id"`
				Start struct {
					DateTime time.Time `json:"dateTime"`
					Date     string    `json:"date"`
				} `json:"start"`
				End struct {
					DateTime time.Time `json:"dateTime"`
					Date     string    `json:"date"`
				} `json:"end"`
				ExtendedProperties struct {
					Private map[string]string `json:"private"`
				} `json:"extendedProperties"`
			} `json:"items"`
		}
		u := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, calendarID, q.Encode())
		if err := c.doJSON(ctx, "calendar.events.list", http.MethodGet, u, nil, &out); err != nil {
			return err
		}
		events = events[:0]
		for _, item := range out.Items {
			events = append(events, Event{
				ID:             item.ID,
				Start:          item.Start.DateTime,
				End:            item.End.DateTime,
				StartDate:      item.Start.Date,
				EndDate:        item.End.Date,
				IdempotencyKey: item.ExtendedProperties.Private["idempotencyKey"],
			})
		}
		return nil
	})
	return events, err
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.withRetry(ctx, "calendar.events.delete", defaultCallTimeout, defaultCallTimeout, func(ctx context.Context) error {
		return c.doJSON(ctx, "calendar.events.delete", http.MethodDelete,
			fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, calendarID, url.PathEscape(eventID)), nil, nil)
	})
}

// withRetry applies the synchronous retry policy: exponential backoff from
// 250ms capped at 1.5s with jitter, at most 3 attempts, abandoning early when
// the elapsed budget runs out. Non-retryable errors stop immediately.
func (c *Client) withRetry(ctx context.Context, op string, attemptTimeout, budget time.Duration, fn func(context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseInterval
	bo.Multiplier = 2
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = budget
	bo.RandomizationFactor = 0.5

	return backoff.Retry(func() error {
		err := c.observe(ctx, op, attemptTimeout, fn)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), retryMaxAttempts-1))
}

// observe runs one attempt under its timeout and emits the structured outcome
// line. Deadline errors are folded into ErrTimeout.
func (c *Client) observe(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s", ErrTimeout, op)
	}

	fields := logrus.Fields{
		"op":          op,
		"ok":          err == nil,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.log.WithFields(fields).Warn("calendar call failed")
		return err
	}
	c.log.WithFields(fields).Debug("calendar call ok")
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, u string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(op, resp.StatusCode, fmt.Errorf("%s", raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
