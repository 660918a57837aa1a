package bandsweep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultBaseURL = "http://localhost:4000/api"
	defaultTimeout = 30 * time.Second
	userAgent      = "bandsweep-go-sdk/1.0.0"

	// maxSnippet bounds how much of a non-JSON body is kept for error messages.
	maxSnippet = 256
)

// Client is the main API client for the Band API proxy.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string

	// Service clients
	Auth    *AuthService
	Bands   *BandService
	Content *ContentService
}

// NewClient creates a new Band API client.
func NewClient(baseURL string, opts ...Option) *Client {
	parsedURL, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		parsedURL, _ = url.Parse(defaultBaseURL)
	}

	// Ensure base URL ends without trailing slash for path joining
	parsedURL.Path = strings.TrimSuffix(parsedURL.Path, "/")

	c := &Client{
		baseURL:    parsedURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  userAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthService{client: c}
	c.Bands = &BandService{client: c}
	c.Content = &ContentService{client: c}

	return c
}

// BaseURL returns the API base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) resolve(requestPath string, queryParams url.Values) *url.URL {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + requestPath
	u.RawQuery = ""
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	return &u
}

// doRequest performs an HTTP request with the given context, method, path, body, and query parameters.
func (c *Client) doRequest(ctx context.Context, method, requestPath string, body interface{}, queryParams url.Values) (*http.Response, error) {
	u := c.resolve(requestPath, queryParams)

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	return resp, nil
}

// doEnvelope performs a request and decodes the {success, data, error}
// envelope. Non-JSON replies yield *ContentTypeError; non-2xx statuses and
// success:false yield *APIError.
func (c *Client) doEnvelope(ctx context.Context, method, requestPath string, body interface{}, queryParams url.Values) (*Envelope, error) {
	resp, err := c.doRequest(ctx, method, requestPath, body, queryParams)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "failed to read response",
			Err:        err,
		}
	}

	if !isJSONContentType(resp.Header.Get("Content-Type")) {
		return nil, &ContentTypeError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Snippet:     snippet(raw),
		}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "failed to decode response",
			Err:        err,
		}
	}

	if resp.StatusCode >= 400 || !env.Success {
		return nil, newAPIError(resp.StatusCode, env.ErrorMessage())
	}

	return &env, nil
}

// untimed returns a shallow copy whose HTTP client has no overall timeout.
func (c *Client) untimed() *Client {
	hc := *c.httpClient
	hc.Timeout = 0
	cp := *c
	cp.httpClient = &hc
	return &cp
}

// buildPath builds an API path from segments.
func (c *Client) buildPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return path.Join(escaped...)
}

func tokenQuery(accessToken string) url.Values {
	q := url.Values{}
	q.Set("access_token", accessToken)
	return q
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
