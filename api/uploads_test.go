package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/datasets"
	"github.com/jrsteele09/bimi-admin/gateway"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/sessions"
	fakesessionrepo "github.com/jrsteele09/bimi-admin/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

const listPayload = `[
	{"id":1,"table_name":"budget_2023","data_description":"State budgets","status":"approved","created_at":"2024-01-02T10:00:00Z","file_size":2048},
	{"id":"2","table_name":"health","data_description":"Clinics","status":"weird","created_at":"2024-02-03T11:22:33.123456"}
]`

// staticDoer authorises every request itself, standing in for the gateway.
type staticDoer struct {
	client *http.Client
}

func (d staticDoer) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer test")
	return d.client.Do(req)
}

func TestListUploads(t *testing.T) {
	for name, payload := range map[string]string{
		"bare array":   listPayload,
		"data wrapper": `{"data":` + listPayload + `}`,
		"results":      `{"count":2,"results":` + listPayload + `}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, api.RouteUploads, r.URL.Path)
				require.Equal(t, "Bearer test", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(payload))
			}))
			defer srv.Close()

			records, err := api.NewUploadsClient(srv.URL, staticDoer{srv.Client()}).ListUploads(context.Background())
			require.NoError(t, err)
			require.Len(t, records, 2)
			require.Equal(t, "1", records[0].ID)
			require.Equal(t, datasets.StatusApproved, records[0].Status)
			require.Equal(t, "2 KB", records[0].SizeLabel())
			require.Equal(t, "2", records[1].ID)
			require.Equal(t, datasets.StatusPending, records[1].Status)
			require.Equal(t, 2024, records[1].CreatedAt.Year())
		})
	}
}

func TestListUploadsUnexpectedShapeIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"nothing here"}`))
	}))
	defer srv.Close()

	records, err := api.NewUploadsClient(srv.URL, staticDoer{srv.Client()}).ListUploads(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestCreateUploadSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "budget_2024", r.FormValue("table_name"))
		require.Equal(t, "State budgets", r.FormValue("data_description"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		require.Equal(t, "budget.csv", hdr.Filename)
		require.Equal(t, "a,b\n1,2\n", string(content))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":9,"table_name":"budget_2024","status":"pending"}}`))
	}))
	defer srv.Close()

	rec, err := api.NewUploadsClient(srv.URL, staticDoer{srv.Client()}).CreateUpload(context.Background(), datasets.Upload{
		FileName:        "budget.csv",
		File:            strings.NewReader("a,b\n1,2\n"),
		DataDescription: "State budgets",
		TableName:       "budget_2024",
	})
	require.NoError(t, err)
	require.Equal(t, "9", rec.ID)
}

func TestUpdateUploadOmitsEmptyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/uploads/files/9/update", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Updated", r.FormValue("data_description"))
		_, hasTable := r.MultipartForm.Value["table_name"]
		require.False(t, hasTable)
		require.Empty(t, r.MultipartForm.File)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := api.NewUploadsClient(srv.URL, staticDoer{srv.Client()}).UpdateUpload(context.Background(), "9", datasets.Patch{DataDescription: "Updated"})
	require.NoError(t, err)
}

func TestSetUploadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/uploads/files/9/status", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{"status": "rejected", "review_comment": "missing units"}, body)
		_, _ = w.Write([]byte(`{"id":9,"status":"rejected","review_comment":"missing units"}`))
	}))
	defer srv.Close()

	rec, err := api.NewUploadsClient(srv.URL, staticDoer{srv.Client()}).SetUploadStatus(context.Background(), "9",
		datasets.Review{Status: datasets.StatusRejected, Comment: "missing units"})
	require.NoError(t, err)
	require.Equal(t, datasets.StatusRejected, rec.Status)
	require.Equal(t, "missing units", rec.ReviewComment)
}

func TestColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/uploads/files/9/columns", r.URL.Path)
		if r.Method == http.MethodPost {
			var col map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&col))
			require.Equal(t, "year", col["name"])
			w.WriteHeader(http.StatusCreated)
			return
		}
		_, _ = w.Write([]byte(`{"columns":[{"column_name":"state","type":"text"},{"name":"amount","data_type":"number"}]}`))
	}))
	defer srv.Close()

	client := api.NewUploadsClient(srv.URL, staticDoer{srv.Client()})
	cols, err := client.ListColumns(context.Background(), "9")
	require.NoError(t, err)
	require.Equal(t, []datasets.Column{{Name: "state", DataType: "text"}, {Name: "amount", DataType: "number"}}, cols)

	added, err := client.AddColumn(context.Background(), "9", datasets.Column{Name: "year", DataType: "integer"})
	require.NoError(t, err)
	require.Equal(t, "year", added.Name)
}

func TestPathArgumentsAreEscaped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/uploads/files/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, api.NewUploadsClient(srv.URL, staticDoer{srv.Client()}).DeleteUpload(context.Background(), "a/b"))
}

func TestBackendErrorsCarryDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":["table_name must be unique"]}`))
	}))
	defer srv.Close()

	_, err := api.NewUploadsClient(srv.URL, staticDoer{srv.Client()}).GetUpload(context.Background(), "9")
	require.Equal(t, "table_name must be unique", api.DetailOf(err))
}

// TestGatewayRefreshEndToEnd wires the real clients together: the dataset
// call is rejected once, the refresh endpoint rotates the access token and
// the upload list is fetched on the replay.
func TestGatewayRefreshEndToEnd(t *testing.T) {
	var listCalls, refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.RouteRefreshToken, func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		require.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"access_token":"access-2"}`))
	})
	mux.HandleFunc("GET "+api.RouteUploads, func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(listPayload))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := sessions.NewStore(fakesessionrepo.NewFakeSessionRepoWith(map[string]string{
		sessions.KeyAccessToken:  "access-1",
		sessions.KeyRefreshToken: "refresh-1",
	}))
	auth := api.NewAuthClient(srv.URL, srv.Client())
	gw := gateway.New(store, auth, gateway.WithHTTPClient(srv.Client()))
	svc := datasets.NewService(api.NewUploadsClient(srv.URL, gw))

	records, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.EqualValues(t, 2, listCalls.Load())
	require.EqualValues(t, 1, refreshCalls.Load())
	require.Equal(t, "access-2", store.AccessToken())
	require.Equal(t, "refresh-1", store.RefreshToken())
}

func TestGatewayRefreshRejectedEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.RouteRefreshToken, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
	})
	mux.HandleFunc("GET "+api.RouteUploads, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := sessions.NewStore(fakesessionrepo.NewFakeSessionRepoWith(map[string]string{
		sessions.KeyAccessToken:  "access-1",
		sessions.KeyRefreshToken: "refresh-1",
	}))
	gw := gateway.New(store, api.NewAuthClient(srv.URL, srv.Client()), gateway.WithHTTPClient(srv.Client()))

	_, err := api.NewUploadsClient(srv.URL, gw).ListUploads(context.Background())
	require.ErrorIs(t, err, errors.ErrRefreshFailed)
	require.Equal(t, "Token is invalid or expired", api.DetailOf(err))
	require.False(t, store.Active())
}

func TestGatewayTransportFailureIsWrappedOnce(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	store := sessions.NewStore(fakesessionrepo.NewFakeSessionRepoWith(map[string]string{
		sessions.KeyAccessToken:  "access-1",
		sessions.KeyRefreshToken: "refresh-1",
	}))
	gw := gateway.New(store, api.NewAuthClient(srv.URL, http.DefaultClient))

	_, err := api.NewUploadsClient(srv.URL, gw).ListUploads(context.Background())
	require.ErrorIs(t, err, errors.ErrTransport)
	require.Equal(t, 1, strings.Count(err.Error(), errors.ErrTransport.Error()), err.Error())
	require.Equal(t, 1, strings.Count(err.Error(), api.RouteUploads), err.Error())
	require.Equal(t, api.MessageNetwork, api.DetailOf(err))
	require.True(t, store.Active())
}
