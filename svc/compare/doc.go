// Package compare talks to the image-comparison inference service.
//
// Client posts both images as base64 JSON to a configured endpoint, retrying
// transport errors and 5xx responses with exponential backoff and tripping a
// circuit breaker after repeated failures. Every failure it returns wraps
// ErrUpstream. Local is a byte-level stand-in for development.
package compare
