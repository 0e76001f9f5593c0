package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/sessions"
	"golang.org/x/oauth2"
)

// AuthClient calls the account endpoints. These never carry a bearer token
// and never go through the gateway, so a failed refresh cannot recurse.
type AuthClient struct {
	baseURL string
	doer    Doer
}

func NewAuthClient(baseURL string, doer Doer) *AuthClient {
	return &AuthClient{baseURL: normaliseBaseURL(baseURL), doer: doer}
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrValidation, "%s required", strings.Join(missing, " and "))
	}
	return nil
}

// LoginResult is the token pair and user profile returned by a login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         sessions.User
}

// Session converts the result into the session to store.
func (r LoginResult) Session() sessions.Session {
	u := r.User
	return sessions.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         &u,
	}
}

// Login exchanges credentials for tokens. The backend returns
// {"data": {"access_token", "refresh_token", ...user fields}}.
func (c *AuthClient) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	if err := creds.Validate(); err != nil {
		return LoginResult{}, err
	}
	creds.Email = strings.TrimSpace(creds.Email)

	req, err := newJSONRequest(ctx, http.MethodPost, endpoint(c.baseURL, RouteLogin), creds)
	if err != nil {
		return LoginResult{}, err
	}
	body, err := send(c.doer, req)
	if err != nil {
		return LoginResult{}, errors.Wrapf(err, "login")
	}

	var payload map[string]json.RawMessage
	if err := decodeEnvelope(body, &payload); err != nil {
		return LoginResult{}, errors.Wrapf(errors.ErrInternal, "login: decode response: %v", err)
	}

	var result LoginResult
	_ = json.Unmarshal(payload["access_token"], &result.AccessToken)
	_ = json.Unmarshal(payload["refresh_token"], &result.RefreshToken)
	if result.AccessToken == "" {
		return LoginResult{}, errors.Wrapf(errors.ErrInternal, "login: response carried no access token")
	}

	// Everything except the tokens is the user profile.
	delete(payload, "access_token")
	delete(payload, "refresh_token")
	userJSON, err := json.Marshal(payload)
	if err == nil {
		err = json.Unmarshal(userJSON, &result.User)
	}
	if err != nil {
		return LoginResult{}, errors.Wrapf(errors.ErrInternal, "login: decode user: %v", err)
	}
	return result, nil
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh exchanges a refresh token for a new access token. The returned
// token's RefreshToken is empty when the backend did not rotate it.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.ErrNoRefreshToken
	}

	req, err := newJSONRequest(ctx, http.MethodPost, endpoint(c.baseURL, RouteRefreshToken), map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	body, err := send(c.doer, req)
	if err != nil {
		return nil, errors.Wrapf(err, "refresh token")
	}

	var resp refreshResponse
	if err := decodeEnvelope(body, &resp); err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "refresh token: decode response: %v", err)
	}
	if resp.AccessToken == "" {
		return nil, errors.Wrapf(errors.ErrInternal, "refresh token: response carried no access token")
	}

	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}
	if resp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return tok, nil
}
