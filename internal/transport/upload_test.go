package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadReturnsReference(t *testing.T) {
	var gotKind, gotCorr string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKind = r.Header.Get("X-Payload-Kind")
		gotCorr = r.Header.Get("X-Correlation-Id")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Location", "https://store.example/blob/abc")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	u := NewUploader(srv.URL)
	ref, err := u.Upload(context.Background(), "req-5", PayloadScreenshot, []byte("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, PayloadScreenshot, gotKind)
	assert.Equal(t, "req-5", gotCorr)
	assert.Equal(t, []byte("png-bytes"), gotBody)
	assert.Equal(t, "https://store.example/blob/abc", ref.URL)
	assert.Equal(t, PayloadScreenshot, ref.PayloadKind)
	assert.Equal(t, 9, ref.Size)
	assert.Len(t, ref.Digest, 16)
}

func TestUploadDefaultURLFromDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := NewUploader(srv.URL)
	ref, err := u.Upload(context.Background(), "req-6", PayloadTree, []byte("tree"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/"+ref.Digest, ref.URL)
}

func TestUploadBreakerStopsHammeringDeadEndpoint(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := NewUploader(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := u.Upload(context.Background(), "r", PayloadTree, []byte("x"))
		require.Error(t, err)
	}
	before := atomic.LoadInt64(&hits)

	_, err := u.Upload(context.Background(), "r", PayloadTree, []byte("x"))
	assert.ErrorIs(t, err, ErrUploadUnavailable)
	assert.Equal(t, before, atomic.LoadInt64(&hits), "open breaker must not reach the endpoint")
}
