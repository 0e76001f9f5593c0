package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/bimi-admin/api"
	"github.com/stretchr/testify/require"
)

func fakeBackend(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.RouteLogin, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"access_token":  accessToken,
			"refresh_token": "r1",
			"email":         body["email"],
			"name":          "Ada",
			"user_role":     "admin",
		}})
	})
	mux.HandleFunc("GET "+api.RouteUploads, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"table_name":"state_budget_2024","data_description":"State budget","status":"approved","file_size":2048},
			{"id":2,"table_name":"health_spend","data_description":"Health spending","status":"weird"}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(bytes.NewReader(nil))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func signedToken(t *testing.T, expires time.Time) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":       "7",
		"user_role": "admin",
		"exp":       expires.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestCLISessionLifecycle(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv := fakeBackend(t, token)
	profile := t.TempDir()
	envFile := filepath.Join(profile, "missing.env")
	common := []string{"--profile", profile, "--api", srv.URL, "--env-file", envFile, "--log-level", "error"}

	_, err := execute(t, append([]string{"whoami"}, common...)...)
	require.Error(t, err)

	_, err = execute(t, append([]string{"login", "--email", "ada@example.com", "--password", "wrong"}, common...)...)
	require.ErrorContains(t, err, "Invalid credentials")

	out, err := execute(t, append([]string{"login", "--email", "ada@example.com", "--password", "secret"}, common...)...)
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as Ada (admin)")
	require.FileExists(t, filepath.Join(profile, "session.json"))

	out, err = execute(t, append([]string{"whoami"}, common...)...)
	require.NoError(t, err)
	require.Contains(t, out, "ada@example.com")
	require.Contains(t, out, "expires in")

	out, err = execute(t, append([]string{"datasets", "list", "--sort", "name"}, common...)...)
	require.NoError(t, err)
	require.Contains(t, out, "health_spend")
	require.Contains(t, out, "Pending", "unknown statuses display as pending")
	require.Contains(t, out, "2 total, 1 approved, 1 pending, 0 rejected")
	require.Less(t, bytes.Index([]byte(out), []byte("health_spend")), bytes.Index([]byte(out), []byte("state_budget_2024")))

	out, err = execute(t, append([]string{"datasets", "list", "--search", "budget", "--sort", "newest"}, common...)...)
	require.NoError(t, err)
	require.NotContains(t, out, "health_spend")

	out, err = execute(t, append([]string{"logout"}, common...)...)
	require.NoError(t, err)
	require.Contains(t, out, "Logged out.")

	_, err = execute(t, append([]string{"whoami"}, common...)...)
	require.Error(t, err)
}

func TestUploadValidationStopsBeforeRequest(t *testing.T) {
	srv := fakeBackend(t, "opaque-token")
	profile := t.TempDir()
	common := []string{"--profile", profile, "--api", srv.URL, "--env-file", filepath.Join(profile, "missing.env"), "--log-level", "error"}

	_, err := execute(t, append([]string{"login", "--email", "ada@example.com", "--password", "secret"}, common...)...)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0o600))

	_, err = execute(t, append([]string{"datasets", "upload", file, "--table", "t", "--description", "d"}, common...)...)
	require.ErrorContains(t, err, "unsupported file type")
}
