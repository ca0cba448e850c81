package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/binder"
)

type portalRequest struct {
	Intent string `json:"intent"`
}

func jsonRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/billing/portal", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		ct         string
		allowEmpty bool
		want       string
		err        error
	}{
		{"valid", `{"intent":"cancel"}`, "application/json", false, "cancel", nil},
		{"charset param", `{"intent":"update"}`, "application/json; charset=utf-8", false, "update", nil},
		{"missing content type", `{"intent":"cancel"}`, "", false, "", binder.ErrMissingContentType},
		{"wrong content type", `intent=cancel`, "application/x-www-form-urlencoded", false, "", binder.ErrUnsupportedMediaType},
		{"unknown field", `{"intent":"cancel","plan":"elite"}`, "application/json", false, "", binder.ErrInvalidJSON},
		{"trailing data", `{"intent":"cancel"}{}`, "application/json", false, "", binder.ErrInvalidJSON},
		{"broken", `{"intent":`, "application/json", false, "", binder.ErrInvalidJSON},
		{"empty not allowed", ``, "application/json", false, "", binder.ErrInvalidJSON},
		{"empty allowed", ``, "", true, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got portalRequest
			err := binder.JSON(tt.allowEmpty)(jsonRequest(tt.body, tt.ct), &got)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Intent)
		})
	}
}
