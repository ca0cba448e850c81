package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxJSONBytes bounds JSON request bodies.
const DefaultMaxJSONBytes = 1 << 20

// JSON decodes an application/json body into v, rejecting unknown fields
// and trailing data. An empty body is accepted when allowEmpty is true.
func JSON(allowEmpty bool) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if r.ContentLength == 0 && allowEmpty {
			return nil
		}
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, ct)
		}

		dec := json.NewDecoder(io.LimitReader(r.Body, DefaultMaxJSONBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				if allowEmpty {
					return nil
				}
				return fmt.Errorf("%w: empty body", ErrInvalidJSON)
			}
			return errors.Join(ErrInvalidJSON, err)
		}

		var extra json.RawMessage
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}
		return nil
	}
}
