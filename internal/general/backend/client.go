// Package backend is the REST side of the driver agent: auth validation,
// active-booking lookup, status updates and location reporting.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNoActiveBooking = errors.New("no active booking")
	ErrUnauthorized    = errors.New("unauthorized")
)

// StatusError is returned for any non-2xx response not mapped to a sentinel.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type Endpoints struct {
	AuthURL     string
	BookingURL  string
	LocationURL string
	DriverURL   string
}

// Client talks to the four REST backends with one cookie jar, mirroring a
// browser session that sends credentials everywhere.
type Client struct {
	ep    Endpoints
	http  *http.Client
	token string
}

type Option func(*Client)

// WithBearer adds "Authorization: Bearer <token>" to every request.
func WithBearer(token string) Option {
	return func(c *Client) { c.token = strings.TrimPrefix(strings.TrimSpace(token), "Bearer ") }
}

// WithHTTPClient replaces the underlying client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(ep Endpoints, timeout time.Duration, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		ep:   trimEndpoints(ep),
		http: &http.Client{Timeout: timeout, Jar: jar},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Jar exposes the shared cookie jar so the realtime dialer sends the same
// credentials.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

func trimEndpoints(ep Endpoints) Endpoints {
	ep.AuthURL = strings.TrimRight(ep.AuthURL, "/")
	ep.BookingURL = strings.TrimRight(ep.BookingURL, "/")
	ep.LocationURL = strings.TrimRight(ep.LocationURL, "/")
	ep.DriverURL = strings.TrimRight(ep.DriverURL, "/")
	return ep
}

// do sends in (if non-nil) as JSON and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &StatusError{Method: method, URL: rawURL, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", ErrUnauthorized, se)
		}
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, rawURL, err)
	}
	return nil
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func seg(s string) string {
	return url.PathEscape(s)
}
