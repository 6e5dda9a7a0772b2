package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/byuoitav/functions/log"
)

// maxBody caps how much of a response body is read
const maxBody = 8 << 20

type cookiesKey struct{}

// WithCookies returns a context whose requests carry exactly the given cookies
// instead of the jar's, and whose 401s do not sign the session out. It is used
// for calls made on behalf of a session that has already been cleared locally.
func WithCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, cookiesKey{}, cookies)
}

func detachedFrom(ctx context.Context) bool {
	_, ok := ctx.Value(cookiesKey{}).([]*http.Cookie)
	return ok
}

// client picks the http client for req, adding the cookies of a detached call
func (c *Client) client(req *http.Request) *http.Client {
	cookies, ok := req.Context().Value(cookiesKey{}).([]*http.Cookie)
	if !ok {
		return c.httpClient
	}

	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	return c.detached
}

// Do performs a JSON exchange with the backend. in, when not nil, is encoded
// as the request body; out, when not nil, receives the decoded response body.
// Every failure is returned as an *Error.
func (c *Client) Do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: ValidationFailure, Message: "unable to encode request", Err: err}
		}

		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: NetworkFailure, Message: MsgNetwork, Err: fmt.Errorf("Error while building request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.L.Debugf("%s %s", method, path)
	res, err := c.client(req).Do(req)
	if err != nil {
		return &Error{Kind: NetworkFailure, Message: MsgNetwork, Err: fmt.Errorf("Error while making request: %w", err)}
	}
	defer res.Body.Close()

	c.observe(res)

	b, readErr := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return normalize(res.StatusCode, b)
	}

	if readErr != nil {
		return &Error{Kind: ServerFailure, Status: res.StatusCode, Message: MsgMalformed, Err: readErr}
	}

	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}

	if err := json.Unmarshal(b, out); err != nil {
		return &Error{Kind: ServerFailure, Status: res.StatusCode, Message: MsgMalformed, Err: err}
	}

	return nil
}

// normalize turns an error response into an *Error, keeping only the body's
// message field
func normalize(status int, body []byte) *Error {
	kind := kindForStatus(status)
	e := &Error{Kind: kind, Status: status, Message: fallbackMessage(kind)}

	var parsed struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		e.Message = parsed.Message
	}

	return e
}

// Get performs a GET request to the given path
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request to the given path
func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Put performs a PUT request to the given path
func (c *Client) Put(ctx context.Context, path string, in, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

// Patch performs a PATCH request to the given path
func (c *Client) Patch(ctx context.Context, path string, in, out interface{}) error {
	return c.Do(ctx, http.MethodPatch, path, in, out)
}

// Delete performs a DELETE request to the given path
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}
