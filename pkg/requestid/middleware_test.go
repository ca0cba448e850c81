package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/pkg/requestid"
)

func serve(t *testing.T, inbound string) (string, string) {
	t.Helper()
	var seen string
	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/compare", nil)
	if inbound != "" {
		req.Header.Set(requestid.Header, inbound)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	return seen, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates id", func(t *testing.T) {
		t.Parallel()
		seen, echoed := serve(t, "")
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, echoed)
	})

	t.Run("keeps valid inbound id", func(t *testing.T) {
		t.Parallel()
		seen, echoed := serve(t, "edge-7f3a.1")
		assert.Equal(t, "edge-7f3a.1", seen)
		assert.Equal(t, "edge-7f3a.1", echoed)
	})

	t.Run("replaces unsafe inbound id", func(t *testing.T) {
		t.Parallel()
		seen, _ := serve(t, "bad id\nwith newline")
		assert.NotEqual(t, "bad id\nwith newline", seen)
		assert.True(t, requestid.Valid(seen))
	})

	t.Run("replaces overlong inbound id", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("a", 129)
		seen, _ := serve(t, long)
		assert.NotEqual(t, long, seen)
	})
}

func TestLogExtractor(t *testing.T) {
	t.Parallel()
	extract := requestid.LogExtractor()

	_, ok := extract(context.Background())
	assert.False(t, ok)

	attr, ok := extract(requestid.WithContext(context.Background(), "req-1"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-1", attr.Value.String())
}
