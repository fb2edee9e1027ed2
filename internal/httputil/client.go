package httputil

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torvix/backend/internal/apperr"
)

// MaxImageBytes caps every image accepted from clients or downloaded on their
// behalf.
const MaxImageBytes = 8 << 20

const maxUpstreamBody = 16 << 20

// =============================================================================
// Upstream Client
// =============================================================================

// UpstreamObserver receives one observation per outbound call.
type UpstreamObserver interface {
	ObserveUpstream(integration, outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveUpstream(string, string, time.Duration) {}

// ClientConfig configures an upstream client.
type ClientConfig struct {
	// Name is the short integration id used as a metrics label.
	Name string
	// Label is the human name used in client-facing error messages.
	Label     string
	Timeout   time.Duration
	UserAgent string
	Observer  UpstreamObserver
}

// Client calls one third-party JSON API and maps transport failures onto the
// apperr upstream kinds.
type Client struct {
	httpClient *http.Client
	name       string
	label      string
	userAgent  string
	observer   UpstreamObserver
}

// Response is a fully read upstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		name:       cfg.Name,
		label:      cfg.Label,
		userAgent:  cfg.UserAgent,
		observer:   observer,
	}
}

// Do sends the request and reads the whole body. Non-2xx responses are
// returned as-is; only transport failures become errors.
func (c *Client) Do(ctx context.Context, method, target string, headers map[string]string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperr.Internal("Failed to build upstream request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if IsTimeout(err) {
			c.observer.ObserveUpstream(c.name, "timeout", time.Since(start))
			return nil, apperr.Wrap(apperr.ErrUpstreamTimeout, c.label+" request timed out", err)
		}
		c.observer.ObserveUpstream(c.name, "unavailable", time.Since(start))
		return nil, apperr.Wrap(apperr.ErrUpstreamUnavailable, "Cannot reach "+c.label+" API", err)
	}
	defer resp.Body.Close()

	raw, err := ReadAllStrict(resp.Body, maxUpstreamBody)
	if err != nil {
		outcome, kind, msg := "bad_response", apperr.ErrUpstreamBadResponse, "Invalid response from "+c.label+" API"
		if IsTimeout(err) {
			outcome, kind, msg = "timeout", apperr.ErrUpstreamTimeout, c.label+" request timed out"
		}
		c.observer.ObserveUpstream(c.name, outcome, time.Since(start))
		return nil, apperr.Wrap(kind, msg, err)
	}

	outcome := "ok"
	if resp.StatusCode >= 400 {
		outcome = "error"
	}
	c.observer.ObserveUpstream(c.name, outcome, time.Since(start))

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, target string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, target, headers, nil)
}

// PostJSON performs a POST request with an already encoded JSON body.
func (c *Client) PostJSON(ctx context.Context, target string, headers map[string]string, body []byte) (*Response, error) {
	merged := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		merged[k] = v
	}
	return c.Do(ctx, http.MethodPost, target, merged, body)
}

// =============================================================================
// Response Helpers
// =============================================================================

// UpstreamMessage extracts a human readable error from an upstream body. JSON
// objects are searched for message, error and detail; arrays use their first
// element. Non-JSON bodies are returned trimmed to 300 bytes.
func UpstreamMessage(body []byte, fallback string) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return fallback
	}
	if !gjson.Valid(raw) {
		if len(raw) > 300 {
			raw = raw[:300]
		}
		return raw
	}

	parsed := gjson.Parse(raw)
	keys := []string{"message", "error", "detail"}
	if parsed.IsArray() {
		parsed = parsed.Get("0")
		keys = []string{"message", "error", "errorCode"}
	}
	if !parsed.IsObject() {
		return fallback
	}
	for _, key := range keys {
		if v := parsed.Get(key); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return fallback
}

// ReadAllStrict reads at most limit bytes and fails when the body is larger.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	body, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return body, nil
}

// ReadAllWithLimit reads up to limit bytes and reports whether more remained.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// IsTimeout reports whether err came from a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// =============================================================================
// Image Download
// =============================================================================

var errImageTooLarge = errors.New("image too large")

// FetchImageDataURI downloads an image on behalf of a client and returns it as
// a base64 data URI. Failures are the client's fault and render as 4xx.
func FetchImageDataURI(ctx context.Context, client *http.Client, imageURL string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusBadRequest, "image_url must use http or https")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusBadRequest, "Cannot download image_url")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; TorvixBackend/1.0)")
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusRequestTimeout, "Timed out while downloading image_url")
		}
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusBadRequest, "Cannot download image_url")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusBadRequest,
			fmt.Sprintf("Cannot download image_url (HTTP %d)", resp.StatusCode))
	}

	contentType := MediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusBadRequest, "image_url must point to an image resource")
	}

	data, err := readImage(resp.Body)
	switch {
	case errors.Is(err, errImageTooLarge):
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Image is too large (max %d bytes)", MaxImageBytes))
	case err != nil && IsTimeout(err):
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusRequestTimeout, "Timed out while downloading image_url")
	case err != nil:
		return "", apperr.WithStatus(apperr.ErrInvalidInput, http.StatusBadRequest, "Cannot download image_url")
	}

	return DataURI(contentType, data), nil
}

func readImage(r io.Reader) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, MaxImageBytes)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, errImageTooLarge
	}
	return data, nil
}

// MediaType strips parameters from a Content-Type header value.
func MediaType(header string) string {
	mediaType, _, _ := strings.Cut(header, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
