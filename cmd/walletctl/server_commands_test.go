package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"walletctl"}, args...))
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		}))
		defer srv.Close()

		out, err := runApp(t, "--server-url", srv.URL, "server", "health")
		require.NoError(t, err)
		assert.Contains(t, out, "Server is healthy")
		assert.Contains(t, out, srv.URL)
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := runApp(t, "--server-url", srv.URL, "server", "health")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "health check failed")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := runApp(t, "--server-url", url, "server", "health")
		require.Error(t, err)
	})
}

func TestVersionCommand(t *testing.T) {
	t.Run("reports server version", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/version", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"version":"v1.2.3"}`))
		}))
		defer srv.Close()

		out, err := runApp(t, "--server-url", srv.URL, "server", "version")
		require.NoError(t, err)
		assert.Contains(t, out, "walletctl CLI")
		assert.Contains(t, out, "Server:  v1.2.3")
	})

	t.Run("server unavailable is not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		out, err := runApp(t, "--server-url", url, "server", "version")
		require.NoError(t, err)
		assert.Contains(t, out, "Server:  unavailable")
	})
}
