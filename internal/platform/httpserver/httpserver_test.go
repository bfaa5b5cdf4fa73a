package httpserver

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerPosture(t *testing.T) {
	srv := New(":8080", http.NewServeMux())

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, readTimeout, srv.ReadTimeout)
	assert.Equal(t, writeTimeout, srv.WriteTimeout)
	assert.Equal(t, idleTimeout, srv.IdleTimeout)
	assert.Equal(t, maxHeaderBytes, srv.MaxHeaderBytes)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}

func TestNewCapsRequestBody(t *testing.T) {
	var readErr error
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.Copy(io.Discard, r.Body)
	})
	srv := New(":0", inner)

	oversized := httptest.NewRequest(http.MethodPost, "/analyze",
		bytes.NewReader(make([]byte, maxBodyBytes+1)))
	srv.Handler.ServeHTTP(httptest.NewRecorder(), oversized)

	var maxErr *http.MaxBytesError
	require.ErrorAs(t, readErr, &maxErr)
	assert.Equal(t, int64(maxBodyBytes), maxErr.Limit)
}

func TestNewAllowsBodiesWithinCap(t *testing.T) {
	var readErr error
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.Copy(io.Discard, r.Body)
	})
	srv := New(":0", inner)

	within := httptest.NewRequest(http.MethodPost, "/analyze",
		bytes.NewReader(make([]byte, 1<<20)))
	srv.Handler.ServeHTTP(httptest.NewRecorder(), within)

	require.NoError(t, readErr)
}
