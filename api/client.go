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

	"github.com/jrsteele09/bimi-admin/internal/errors"
)

// Doer sends a request. *http.Client and the authenticated gateway both
// satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxResponseBody = 32 << 20

// endpoint joins a route onto the base url, escaping path arguments.
func endpoint(baseURL, route string, args ...string) string {
	if len(args) == 0 {
		return baseURL + route
	}
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return baseURL + fmt.Sprintf(route, escaped...)
}

// newJSONRequest builds a request whose body can be replayed.
func newJSONRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s %s body", method, target)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s request", method, target)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send executes req and returns the body of a successful response.
// Non-2xx responses become *Error, network failures wrap ErrTransport.
func send(doer Doer, req *http.Request) ([]byte, error) {
	resp, err := doer.Do(req)
	if err != nil {
		if classified(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s: %w: %w", req.Method, req.URL.Path, errors.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp)
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w: %w", req.Method, req.URL.Path, errors.ErrTransport, err)
	}
	return body, nil
}

// classified reports errors that already carry their meaning, either raised
// by the gateway itself or already wrapped as a transport failure.
func classified(err error) bool {
	var apiErr *Error
	return errors.Is(err, errors.ErrTransport) ||
		errors.Is(err, errors.ErrNotAuthenticated) ||
		errors.Is(err, errors.ErrNoRefreshToken) ||
		errors.Is(err, errors.ErrRefreshFailed) ||
		errors.Is(err, errors.ErrSessionExpired) ||
		errors.As(err, &apiErr)
}

// decodeEnvelope decodes body into v, unwrapping a {"data": ...} envelope
// when one is present. An empty body leaves v untouched.
func decodeEnvelope(body []byte, v any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if body[0] == '{' && json.Unmarshal(body, &envelope) == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		body = envelope.Data
	}
	return json.Unmarshal(body, v)
}

// NewHTTPClient returns the plain client used for unauthenticated calls and
// as the transport under the gateway.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func normaliseBaseURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}
