package compare_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/svc/compare"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func twoImages() compare.Request {
	return compare.Request{
		Prompt: "what changed?",
		Images: []compare.Image{
			{Name: "a.png", ContentType: "image/png", Data: []byte("aaaa")},
			{Name: "b.png", ContentType: "image/png", Data: []byte("aabb")},
		},
	}
}

func newClient(t *testing.T, url string, retries int, opts ...compare.ClientOption) *compare.Client {
	t.Helper()
	opts = append([]compare.ClientOption{
		compare.WithBackoff(compare.ExponentialBackoff{Initial: time.Millisecond, Max: time.Millisecond}),
		compare.WithLogger(quiet),
	}, opts...)
	c, err := compare.NewClient(compare.Config{
		Endpoint:   url,
		APIKey:     "k",
		Timeout:    time.Second,
		MaxRetries: retries,
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var body struct {
			Prompt string `json:"prompt"`
			Images []struct {
				MimeType string `json:"mime_type"`
				Data     string `json:"data"`
			} `json:"images"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what changed?", body.Prompt)
		require.Len(t, body.Images, 2)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("aaaa")), body.Images[0].Data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"second image is darker","similarity":0.8,"model":"vision-1"}`))
	}))
	t.Cleanup(srv.Close)

	res, err := newClient(t, srv.URL, 0).Compare(context.Background(), twoImages())
	require.NoError(t, err)
	assert.Equal(t, "second image is darker", res.Summary)
	assert.InDelta(t, 0.8, res.Similarity, 1e-9)
	assert.Equal(t, "vision-1", res.Model)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"summary":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	res, err := newClient(t, srv.URL, 2).Compare(context.Background(), twoImages())
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Summary)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	_, err := newClient(t, srv.URL, 3).Compare(context.Background(), twoImages())
	require.ErrorIs(t, err, compare.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BreakerOpens(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	breaker := compare.NewBreaker(2, 1, time.Hour)
	c := newClient(t, srv.URL, 0, compare.WithBreaker(breaker))

	for range 2 {
		_, err := c.Compare(context.Background(), twoImages())
		require.ErrorIs(t, err, compare.ErrUpstream)
	}
	assert.Equal(t, compare.BreakerOpen, breaker.State())

	_, err := c.Compare(context.Background(), twoImages())
	require.ErrorIs(t, err, compare.ErrCircuitOpen)
	require.ErrorIs(t, err, compare.ErrUpstream)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewClient_InvalidEndpoint(t *testing.T) {
	t.Parallel()
	for _, endpoint := range []string{"", "ftp://x", "not a url"} {
		_, err := compare.NewClient(compare.Config{Endpoint: endpoint})
		require.ErrorIs(t, err, compare.ErrInvalidConfig, endpoint)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	img := func(ct string, n int) compare.Image {
		return compare.Image{ContentType: ct, Data: make([]byte, n)}
	}
	tests := []struct {
		name    string
		req     compare.Request
		wantErr bool
	}{
		{"ok", compare.Request{Images: []compare.Image{img("image/png", 10), img("image/webp", 10)}}, false},
		{"one image", compare.Request{Images: []compare.Image{img("image/png", 10)}}, true},
		{"three images", compare.Request{Images: []compare.Image{img("image/png", 1), img("image/png", 1), img("image/png", 1)}}, true},
		{"wrong type", compare.Request{Images: []compare.Image{img("image/png", 10), img("application/pdf", 10)}}, true},
		{"too big", compare.Request{Images: []compare.Image{img("image/png", 10), img("image/gif", 101)}}, true},
		{"empty", compare.Request{Images: []compare.Image{img("image/png", 0), img("image/png", 1)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := compare.Validate(tt.req, 100)
			if tt.wantErr {
				require.ErrorIs(t, err, compare.ErrMalformedInput)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLocal(t *testing.T) {
	t.Parallel()
	req := twoImages()
	res, err := compare.Local{}.Compare(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Similarity, 1e-9)

	req.Images[1] = req.Images[0]
	res, err = compare.Local{}.Compare(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Similarity, 1e-9)
}
