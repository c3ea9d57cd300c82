// Package api is the client for the field-service backend's item API.
// Every authenticated call goes through a single fetch policy: attach the
// bearer token, detect credential expiry, refresh once through the token
// source, and retry once with the new token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every backend call. A hung request surfaces as a
// RequestError instead of blocking its caller indefinitely.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the bearer credential and handles expiry. The
// session Manager implements it.
type TokenSource interface {
	// AccessToken returns the current access token, or "" when logged out.
	AccessToken() string
	// Refresh obtains a new access token. staleToken is the credential
	// the caller saw rejected; callers racing on the same expiry share
	// one exchange.
	Refresh(ctx context.Context, staleToken string) error
	// Invalidate force-clears the stored credentials after an
	// unrecoverable expiry.
	Invalidate(ctx context.Context)
}

// Client issues authenticated calls against the backend item API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource

	Requests *RequestsService
	Bookings *BookingsService
	Profiles *ProfilesService
	Chat     *ChatService
	Files    *FilesService
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client // optional; defaults to a DefaultTimeout client
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base url is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("api: token source is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		tokens:  opts.Tokens,
	}
	c.Requests = &RequestsService{c: c}
	c.Bookings = &BookingsService{c: c}
	c.Profiles = &ProfilesService{c: c}
	c.Chat = &ChatService{c: c}
	c.Files = &FilesService{c: c}
	return c, nil
}

// envelope is the backend's JSON response shape.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []backendError  `json:"errors"`
}

type backendError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// Token error codes the backend uses for an expired or invalid bearer.
const (
	codeTokenExpired = "TOKEN_EXPIRED"
	codeInvalidToken = "INVALID_TOKEN"
)

// doJSON marshals body (when non-nil) and runs the authenticated fetch
// policy, decoding the envelope's data into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshal body: %w", err)
		}
		payload = b
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, payload, contentType, out)
}

// do implements the fetch policy: fail fast when logged out, attach the
// bearer token, refresh-and-retry exactly once on an auth failure, and
// map everything else onto the error taxonomy. A second auth failure
// after a successful refresh is returned as a plain RequestError; the
// policy never loops.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out interface{}) error {
	token := c.tokens.AccessToken()
	if token == "" {
		return ErrNotAuthenticated
	}

	status, env, err := c.send(ctx, method, path, query, body, contentType, token)
	if err != nil {
		return err
	}

	if isAuthFailure(status, env) {
		if rerr := c.tokens.Refresh(ctx, token); rerr != nil {
			c.tokens.Invalidate(ctx)
			return fmt.Errorf("%w: %v", ErrSessionExpired, rerr)
		}
		status, env, err = c.send(ctx, method, path, query, body, contentType, c.tokens.AccessToken())
		if err != nil {
			return err
		}
	}

	return decodeEnvelope(status, env, out)
}

// send issues one HTTP request and parses the response envelope.
// Transport failures and unparseable bodies come back as RequestErrors.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, contentType, token string) (int, *envelope, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, requestErrorf(0, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, requestErrorf(resp.StatusCode, "read response: %v", err)
	}

	env := &envelope{}
	if len(raw) > 0 {
		if uerr := json.Unmarshal(raw, env); uerr != nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return 0, nil, requestErrorf(resp.StatusCode, "malformed response: %v", uerr)
			}
			// Non-JSON error body; status alone carries the failure.
			env = &envelope{}
		}
	}
	return resp.StatusCode, env, nil
}

// isAuthFailure reports whether a response means the bearer was rejected.
func isAuthFailure(status int, env *envelope) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	for _, e := range env.Errors {
		if e.Extensions.Code == codeTokenExpired || e.Extensions.Code == codeInvalidToken {
			return true
		}
	}
	return false
}

// decodeEnvelope maps a parsed response onto the error taxonomy and
// unmarshals the data payload.
func decodeEnvelope(status int, env *envelope, out interface{}) error {
	if status < 200 || status >= 300 || len(env.Errors) > 0 {
		re := &RequestError{Status: status}
		for _, e := range env.Errors {
			re.Messages = append(re.Messages, e.Message)
		}
		return re
	}
	if out == nil || env.Data == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return requestErrorf(status, "malformed data payload: %v", err)
	}
	return nil
}
