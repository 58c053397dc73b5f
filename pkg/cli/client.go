package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credential header names the API authenticates on. Duplicated here rather
// than imported so the CLI stays decoupled from server internals.
const (
	headerAccessKeyID  = "X-Access-Key-Id"
	headerSecretKey    = "X-Secret-Access-Key"
	headerSessionToken = "X-Session-Token"
)

// apiPrefix is prepended to every request path.
const apiPrefix = "/api/v1"

// Client is a minimal HTTP client for the IAM API.
type Client struct {
	BaseURL         string
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	HTTPClient      *http.Client
}

// NewClient creates a client for the given base URL. Credentials may be
// empty; requests then go out unauthenticated.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Do executes a request against the API. The path is relative to the API
// version prefix. A non-nil body is JSON-encoded. The caller owns the
// response body.
func (c *Client) Do(method, path string, query url.Values, body any) (*http.Response, error) {
	u := strings.TrimRight(c.BaseURL, "/") + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AccessKeyID != "" {
		req.Header.Set(headerAccessKeyID, c.AccessKeyID)
		req.Header.Set(headerSecretKey, c.SecretAccessKey)
	}
	if c.SessionToken != "" {
		req.Header.Set(headerSessionToken, c.SessionToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// APIError is a non-2xx response decoded from the API's error envelope.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.Message)
}

// CheckError turns a non-2xx response into an *APIError, consuming the
// body. Responses without the JSON envelope fall back to the raw body.
func CheckError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{HTTPStatus: resp.StatusCode}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// ReadBody reads and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// doJSON runs a request and decodes the response into out when out is
// non-nil. API errors come back as *APIError.
func (c *Client) doJSON(method, path string, query url.Values, body, out any) error {
	resp, err := c.Do(method, path, query, body)
	if err != nil {
		return err
	}
	if err := CheckError(resp); err != nil {
		return err
	}
	raw, err := ReadBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
