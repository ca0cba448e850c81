package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the envelope of every JSON response.
type JSONResponse struct {
	Data  any          `json:"data,omitempty"`
	Meta  any          `json:"meta,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	header http.Header
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range j.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

func WithStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

func WithMeta(meta any) JSONOption {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// WithHeader adds a response header.
func WithHeader(key, value string) JSONOption {
	return func(r *jsonResponse) {
		if r.header == nil {
			r.header = http.Header{}
		}
		r.header.Add(key, value)
	}
}

// JSON renders data inside the envelope with status 200.
func JSON(data any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: data}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err, classified by Classify without domain tables,
// inside the envelope.
func JSONError(err error, opts ...JSONOption) Response {
	return errorResponse(Classify(err), err, opts)
}

func errorResponse(he HTTPError, err error, opts []JSONOption) Response {
	detail := &ErrorDetail{Code: he.Code, Message: he.Message}
	var ve ValidationError
	if errors.As(err, &ve) && len(ve) > 0 {
		detail.Details = map[string][]string(ve)
	}
	r := &jsonResponse{status: he.Status, body: JSONResponse{Error: detail}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
