package lore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public kernel mailing-list archive.
const DefaultBaseURL = "https://lore.kernel.org"

// PageSize is the number of entries the archive serves per feed or
// directory page. Offsets always advance by this amount.
const PageSize = 200

// patchQuery restricts a feed to patch and RFC submissions, excluding replies.
const patchQuery = "((s:patch+OR+s:rfc)+AND+NOT+s:re:)"

// ErrFetchFailed is the kind of every transport failure.
var ErrFetchFailed = errors.New("upstream fetch failed")

// FetchError describes a failed request to the archive.
type FetchError struct {
	URL    string
	Status int // zero when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: GET %s: status %d", ErrFetchFailed, e.URL, e.Status)
	}
	return fmt.Sprintf("%s: GET %s: %v", ErrFetchFailed, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// PatchFeedFetcher returns one page of the Atom feed of a list.
type PatchFeedFetcher interface {
	FetchPatchFeed(ctx context.Context, list string, offset int) (string, error)
}

// ListDirectoryFetcher returns one page of the list-of-lists HTML.
type ListDirectoryFetcher interface {
	FetchListDirectory(ctx context.Context, offset int) (string, error)
}

// PatchHTMLFetcher returns the HTML rendering of one message.
type PatchHTMLFetcher interface {
	FetchPatchHTML(ctx context.Context, list, messageID string) (string, error)
}

// Client talks to a public-inbox archive over HTTP.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another archive instance.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  "lorepatch",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the archive root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) FetchPatchFeed(ctx context.Context, list string, offset int) (string, error) {
	u := fmt.Sprintf("%s/%s/?x=A&q=%s&o=%d", c.baseURL, url.PathEscape(list), patchQuery, offset)
	return c.get(ctx, u)
}

func (c *Client) FetchListDirectory(ctx context.Context, offset int) (string, error) {
	u := fmt.Sprintf("%s/?&o=%d", c.baseURL, offset)
	return c.get(ctx, u)
}

func (c *Client) FetchPatchHTML(ctx context.Context, list, messageID string) (string, error) {
	u := fmt.Sprintf("%s/%s/%s/", c.baseURL, url.PathEscape(list), url.PathEscape(messageID))
	return c.get(ctx, u)
}

func (c *Client) get(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &FetchError{URL: u, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: u, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: u, Status: resp.StatusCode, Err: err}
	}
	slog.Debug("lore request", "url", u, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return string(body), nil
}
