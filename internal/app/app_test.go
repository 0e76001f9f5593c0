package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/internal/app"
	"github.com/jrsteele09/bimi-admin/internal/config"
	"github.com/jrsteele09/bimi-admin/sessions"
	"github.com/stretchr/testify/require"
)

// backend serves login, refresh and the upload list. The list only accepts
// the refreshed token "a2".
type backend struct {
	lists     atomic.Int32
	refreshes atomic.Int32
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.RouteLogin, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"access_token":"a1","refresh_token":"r1","email":"ada@example.com","user_role":"admin"}}`))
	})
	mux.HandleFunc("POST "+api.RouteRefreshToken, func(w http.ResponseWriter, _ *http.Request) {
		b.refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a2"}`))
	})
	mux.HandleFunc("GET "+api.RouteUploads, func(w http.ResponseWriter, r *http.Request) {
		b.lists.Add(1)
		if r.Header.Get("Authorization") != "Bearer a2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":1,"table_name":"state_budget","data_description":"Budget","status":"approved"}]}`))
	})
	return mux
}

func newConfig(t *testing.T, dir, baseURL string) config.Config {
	t.Helper()
	return config.New(
		config.WithEnvFile(filepath.Join(dir, "missing.env")),
		config.WithOverride(config.KeyProfileDir, dir),
		config.WithOverride(config.KeyAPIBaseURL, baseURL),
	)
}

func newApp(t *testing.T, c config.Config) *app.App {
	t.Helper()
	a, err := app.New(c)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestLoginThenListRefreshesOnce(t *testing.T) {
	b := &backend{}
	srv := httptest.NewServer(b.handler())
	defer srv.Close()

	dir := t.TempDir()
	a := newApp(t, newConfig(t, dir, srv.URL))

	result, err := a.Auth.Login(context.Background(), api.Credentials{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)
	require.NoError(t, a.Store.Save(result.Session()))
	require.Equal(t, sessions.RoleAdmin, a.Store.Session().Role())

	records, err := a.Datasets.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "state_budget", records[0].TableName)
	require.Equal(t, int32(2), b.lists.Load())
	require.Equal(t, int32(1), b.refreshes.Load())

	require.Equal(t, "a2", a.Store.AccessToken())
	require.Equal(t, "r1", a.Store.RefreshToken(), "refresh token is kept when not rotated")

	// A second process on the same profile sees the refreshed token
	other := newApp(t, newConfig(t, dir, srv.URL))
	require.Equal(t, "a2", other.Store.AccessToken())
}

func TestSessionChangesInvalidateDatasets(t *testing.T) {
	b := &backend{}
	srv := httptest.NewServer(b.handler())
	defer srv.Close()

	a := newApp(t, newConfig(t, t.TempDir(), srv.URL))
	require.NoError(t, a.Store.Save(sessions.Session{AccessToken: "a2", RefreshToken: "r1"}))

	_, err := a.Datasets.List(context.Background())
	require.NoError(t, err)
	_, err = a.Datasets.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), b.lists.Load())

	require.NoError(t, a.Store.Save(sessions.Session{AccessToken: "a2", RefreshToken: "r9"}))
	_, err = a.Datasets.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), b.lists.Load())
}

func TestWatchFollowsLogoutFromAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	c := newConfig(t, dir, "http://127.0.0.1:1")

	a := newApp(t, c)
	require.NoError(t, a.Store.Save(sessions.Session{AccessToken: "a1", RefreshToken: "r1"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register before the other process writes
	time.Sleep(50 * time.Millisecond)

	other := newApp(t, c)
	require.True(t, other.Store.Active())
	require.NoError(t, other.Store.Clear())

	require.Eventually(t, func() bool { return !a.Store.Active() }, 2*time.Second, 20*time.Millisecond)
}

func TestServerIsBuiltOnce(t *testing.T) {
	a := newApp(t, newConfig(t, t.TempDir(), "http://127.0.0.1:1"))

	first, err := a.Server()
	require.NoError(t, err)
	second, err := a.Server()
	require.NoError(t, err)
	require.Same(t, first, second)
}
