package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/internal/utils"
	"github.com/jrsteele09/bimi-admin/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const requestIDHeader = "X-Request-ID"

// State is the lifecycle of one logical request.
type State int

const (
	StateSent       State = iota + 1 // first attempt in flight
	StateRefreshing                  // first attempt got 401, refreshing tokens
	StateRetried                     // replayed once with the new access token
	StateDone                        // a response was returned to the caller
	StateFailed                      // an error was returned to the caller
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateRefreshing:
		return "refreshing"
	case StateRetried:
		return "retried"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TokenStore is the part of the session store the gateway needs.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	Update(u sessions.TokenUpdate) error
	Clear() error
}

// Refresher exchanges a refresh token for new tokens. It must not itself go
// through the gateway.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Gateway sends requests with the session's bearer token. A 401 on the first
// attempt triggers one refresh and one replay; a failed refresh logs the
// session out.
type Gateway struct {
	client    *http.Client
	store     TokenStore
	refresher Refresher
	metrics   *Metrics
	requestID func() string
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithRequestIDs overrides the X-Request-ID generator.
func WithRequestIDs(next func() string) Option {
	return func(g *Gateway) { g.requestID = next }
}

func New(store TokenStore, refresher Refresher, opts ...Option) *Gateway {
	g := &Gateway{
		client:    http.DefaultClient,
		store:     store,
		refresher: refresher,
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends req with the current access token. It returns the response to
// the last attempt made, whatever its status, or an error when no attempt
// could complete.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	token := g.store.AccessToken()
	if token == "" {
		closeBody(req)
		g.metrics.request(StateFailed, false)
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "%s %s", req.Method, req.URL.Path)
	}

	if err := makeReplayable(req); err != nil {
		g.metrics.request(StateFailed, false)
		return nil, err
	}

	id := req.Header.Get(requestIDHeader)
	if id == "" {
		id = g.requestID()
	}
	logger := log.With().Str("request_id", id).Str("method", req.Method).Str("path", req.URL.Path).Logger()

	logger.Debug().Stringer("state", StateSent).Msg("gateway request")
	resp, err := g.send(req, token, id)
	if err != nil {
		g.metrics.request(StateFailed, false)
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		g.metrics.request(StateDone, false)
		return resp, nil
	}
	drain(resp)

	logger.Debug().Stringer("state", StateRefreshing).Msg("access token rejected")
	token, err = g.refresh(req.Context())
	if err != nil {
		logger.Warn().Err(err).Stringer("state", StateFailed).Msg("refresh failed, session cleared")
		g.metrics.request(StateFailed, false)
		return nil, err
	}

	logger.Debug().Stringer("state", StateRetried).Msg("replaying with refreshed token")
	resp, err = g.send(req, token, id)
	if err != nil {
		g.metrics.request(StateFailed, true)
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		logger.Warn().Msg("replay was rejected, not retrying again")
	}
	g.metrics.request(StateDone, true)
	return resp, nil
}

// send clones req for one attempt so the caller's request is never mutated.
func (g *Gateway) send(req *http.Request, token, id string) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrapf(err, "rewind request body")
		}
		attempt.Body = body
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(attempt)
	attempt.Header.Set(requestIDHeader, id)

	resp, err := g.client.Do(attempt)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", req.Method, req.URL.Path, errors.ErrTransport, err)
	}
	return resp, nil
}

// refresh obtains and stores a new access token, clearing the session when
// that is not possible.
func (g *Gateway) refresh(ctx context.Context) (string, error) {
	refreshToken := g.store.RefreshToken()
	if refreshToken == "" {
		g.metrics.refresh("no_refresh_token")
		g.forceLogout()
		return "", errors.ErrNoRefreshToken
	}

	tok, err := g.refresher.Refresh(ctx, refreshToken)
	if err == nil && tok.AccessToken == "" {
		err = errors.Wrapf(errors.ErrInternal, "refresh returned no access token")
	}
	if err != nil {
		g.metrics.refresh("failure")
		g.forceLogout()
		return "", fmt.Errorf("%w: %w", errors.ErrRefreshFailed, err)
	}
	g.metrics.refresh("success")

	err = g.store.Update(sessions.TokenUpdate{
		AccessToken:  utils.NonEmpty(tok.AccessToken),
		RefreshToken: utils.NonEmpty(tok.RefreshToken),
	})
	switch {
	case errors.Is(err, errors.ErrNotAuthenticated):
		// Logged out while the refresh was in flight; the new token is dropped.
		return "", fmt.Errorf("%w: %w", errors.ErrSessionExpired, err)
	case err != nil:
		// The replay still uses the new token; only persistence failed.
		log.Err(err).Msg("unable to persist refreshed tokens")
	}
	return tok.AccessToken, nil
}

func (g *Gateway) forceLogout() {
	g.metrics.forcedLogout()
	if err := g.store.Clear(); err != nil {
		log.Err(err).Msg("unable to clear session after failed refresh")
	}
}

// makeReplayable buffers a body that cannot be re-read so the request can
// be sent a second time.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	b, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return errors.Wrapf(err, "buffer request body")
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
