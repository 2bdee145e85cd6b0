// Package sources fetches records from the news and social media APIs and
// normalizes them into models records.
package sources

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

	"github.com/DeafMist/media-aggregator/internal/models"
)

// Source directory and index names.
const (
	SourceNYTimes    = "nytimes"
	SourceMediastack = "mediastack"
	SourceGNews      = "gnews"
	SourceTweets     = "tweets"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

var (
	// ErrMissingCredential is returned when no API key or token was resolved.
	ErrMissingCredential = errors.New("credential not provided")
	// ErrUserNotFound is returned when the social API does not know the handle.
	ErrUserNotFound = errors.New("user not found")
)

// StatusError is a non-2xx answer from an upstream API.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.StatusCode, e.Body)
}

// Saver persists a normalized record; the content store satisfies it.
type Saver interface {
	Save(rec models.Record, source string) (string, error)
}

// Option customises a client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	baseURL    string
	saver      Saver
	now        func() time.Time
}

// WithHTTPClient replaces the default client with its fixed 30s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithSaver makes Fetch persist every record right after it is normalized.
func WithSaver(s Saver) Option {
	return func(o *options) { o.saver = s }
}

// WithClock overrides the current time used for default date ranges.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type base struct {
	name    string
	http    *http.Client
	baseURL string
	saver   Saver
	now     func() time.Time
}

func newBase(name, defaultURL string, opts []Option) base {
	o := options{baseURL: defaultURL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return base{name: name, http: o.httpClient, baseURL: o.baseURL, saver: o.saver, now: o.now}
}

func requireCredential(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: %w", name, ErrMissingCredential)
	}
	return nil
}

// getJSON performs a GET against baseURL+path and decodes the body into out.
func (b *base) getJSON(ctx context.Context, path string, params url.Values, header http.Header, out any) error {
	endpoint := b.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", b.name, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	res, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", b.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &StatusError{Source: b.name, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", b.name, err)
	}
	return nil
}

func (b *base) persist(rec models.Record, source string) error {
	if b.saver == nil {
		return nil
	}
	if _, err := b.saver.Save(rec, source); err != nil {
		return fmt.Errorf("%s: persist record: %w", b.name, err)
	}
	return nil
}

func setIfNotEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

// uniqueStrings drops empty values and duplicates, keeping first occurrences.
func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
