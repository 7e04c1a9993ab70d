// Package fetch retrieves page bodies over HTTP and decodes them to text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; linkscan/1.0)"

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes int64 = 10 << 20

// Result holds a successfully fetched and decoded page.
type Result struct {
	URL         string
	Body        string
	ContentType string
	Encoding    string
	StatusCode  int
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// StrictStatus makes non-2xx responses fail with KindHTTP instead of
	// returning the body.
	StrictStatus bool
	// MaxBodyBytes truncates longer bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Client fetches pages. A single Client is shared by all workers so they
// reuse one connection pool.
type Client struct {
	http *http.Client
	opts Options
}

// New creates a Client. Nil opts means DefaultOptions.
func New(opts *Options) *Client {
	o := *DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Client{
		http: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		opts: o,
	}
}

// Fetch issues a single GET for urlStr and returns the decoded body.
// There is no retry. Failures are always *Error.
func (c *Client) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Kind: KindNetwork, Message: "invalid URL", Cause: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Kind: KindNetwork, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	for key, value := range c.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, reqCtx, urlStr, "HTTP request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// One extra byte tells a capped body apart from one that fits exactly.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(ctx, reqCtx, urlStr, "failed to read response body", err)
	}
	truncated := int64(len(raw)) > c.opts.MaxBodyBytes
	if truncated {
		raw = raw[:c.opts.MaxBodyBytes]
	}

	contentType := resp.Header.Get("Content-Type")
	body, encName, err := decode(raw, contentType, truncated)
	if err != nil {
		return nil, &Error{URL: urlStr, Kind: KindDecode, Message: "failed to decode body", StatusCode: resp.StatusCode, Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		Body:        body,
		ContentType: contentType,
		Encoding:    encName,
		StatusCode:  resp.StatusCode,
	}

	if c.opts.StrictStatus && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return result, &Error{
			URL:        urlStr,
			Kind:       KindHTTP,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return result, nil
}

// errUnsupportedCharset is returned for a declared charset with no decoder.
var errUnsupportedCharset = errors.New("unsupported charset")

// errInvalidUTF8 is returned when the decoded text is not valid UTF-8.
var errInvalidUTF8 = errors.New("body is not valid UTF-8")

// decode converts raw to a UTF-8 string using the declared charset, a BOM
// or an HTML meta prescan, in that order of precedence. The prescan only sees
// the first 1024 bytes, so an undeclared body that falls back to
// windows-1252 is kept as UTF-8 when the whole of it is valid UTF-8.
// truncated means raw was cut at the size cap and may end mid-rune.
func decode(raw []byte, contentType string, truncated bool) (string, string, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs, ok := params["charset"]; ok {
			if e, _ := charset.Lookup(cs); e == nil {
				return "", "", fmt.Errorf("%w: %q", errUnsupportedCharset, cs)
			}
		}
	}

	utf8Text := raw
	if truncated {
		utf8Text = trimPartialRune(raw)
	}

	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if !certain && name == "windows-1252" && utf8.Valid(utf8Text) {
		name = "utf-8"
	}

	if name == "utf-8" {
		if !utf8.Valid(utf8Text) {
			return "", name, errInvalidUTF8
		}
		return string(utf8Text), name, nil
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", name, err
	}
	if !utf8.Valid(decoded) {
		return "", name, errInvalidUTF8
	}
	return string(decoded), name, nil
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

// classify maps a transport error to an *Error. A deadline hit on the
// request context while the caller's context is still live is a timeout.
func classify(parent, reqCtx context.Context, urlStr, msg string, err error) *Error {
	if parent.Err() != nil {
		return &Error{URL: urlStr, Kind: KindNetwork, Message: "request canceled", Cause: parent.Err()}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(reqCtx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{URL: urlStr, Kind: KindTimeout, Message: "request timed out", Cause: err}
	}

	return &Error{URL: urlStr, Kind: KindNetwork, Message: msg, Cause: err}
}
