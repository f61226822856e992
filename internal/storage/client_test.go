package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExistsDefinitiveAnswers verifies 200 and 404 from the primary info path
// are final, with no further strategies consulted.
func TestExistsDefinitiveAnswers(t *testing.T) {
	t.Parallel()

	var listCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "secret", r.Header.Get("apikey"))

		switch {
		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/info/binaries/present.dmg"):
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/info/binaries/absent.dmg"):
			w.WriteHeader(http.StatusNotFound)
		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/list/"):
			listCalls++
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("[]"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL, "secret")

	exists, err := client.Exists(context.Background(), "binaries", "present.dmg")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = client.Exists(context.Background(), "binaries", "absent.dmg")
	require.NoError(t, err)
	require.False(t, exists)

	require.Zero(t, listCalls)
}

// TestExistsAlternatePath verifies an ambiguous primary answer falls through
// to the alternate info path.
func TestExistsAlternatePath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/info/"):
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unsupported"}`))
		case strings.HasPrefix(r.URL.Path, "/object/info/"):
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL, "secret")

	exists, err := client.Exists(context.Background(), "binaries", "App_2.0.0.dmg")
	require.NoError(t, err)
	require.True(t, exists)
}

// TestExistsListFallback verifies the prefix-list fallback scans for an exact
// name match when both info paths are ambiguous.
func TestExistsListFallback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/object/info/"):
			w.WriteHeader(http.StatusBadRequest)
		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/list/binaries"):
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "App_2.0.0.dmg", body["prefix"])

			w.WriteHeader(http.StatusOK)
			// Prefix matches that are not exact must be ignored.
			_, _ = w.Write([]byte(`[{"name":"App_2.0.0.dmg.sig"},{"name":"App_2.0.0.dmg"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL, "secret")

	exists, err := client.Exists(context.Background(), "binaries", "App_2.0.0.dmg")
	require.NoError(t, err)
	require.True(t, exists)
}

// TestExistsTransportError verifies an unreachable endpoint surfaces as a
// typed transport failure, never as "does not exist".
func TestExistsTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close()

	client := New(server.URL, "secret")

	_, err := client.Exists(context.Background(), "binaries", "App_2.0.0.dmg")
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, server.URL, transportErr.Endpoint)
}

// TestUpload verifies the raw-body POST contract and success statuses.
func TestUpload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/storage/v1/object/binaries/App_2.0.0.dmg", r.URL.EscapedPath())
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		payload, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "installer bytes", string(payload))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"Key":"binaries/App_2.0.0.dmg"}`))
	}))
	defer server.Close()

	client := New(server.URL, "secret")

	result, err := client.Upload(context.Background(), "binaries", "App_2.0.0.dmg", strings.NewReader("installer bytes"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Contains(t, result.Body, "App_2.0.0.dmg")
}

// TestUploadRejected verifies non-success statuses carry the body back for
// diagnostics.
func TestUploadRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"row level security"}`))
	}))
	defer server.Close()

	client := New(server.URL, "secret")

	_, err := client.Upload(context.Background(), "binaries", "App_2.0.0.dmg", strings.NewReader("x"))
	require.Error(t, err)

	var rejectedErr *UploadRejectedError
	require.ErrorAs(t, err, &rejectedErr)
	require.Equal(t, http.StatusForbidden, rejectedErr.StatusCode)
	require.Equal(t, "App_2.0.0.dmg", rejectedErr.Key)
	require.Contains(t, rejectedErr.Body, "row level security")
}

// TestPublicURL is pure string construction.
func TestPublicURL(t *testing.T) {
	t.Parallel()

	client := New("https://storage.example.com", "secret")

	require.Equal(t,
		"https://storage.example.com/storage/v1/object/public/binaries/App_2.0.0.dmg",
		client.PublicURL("binaries", "App_2.0.0.dmg"))
}
