// Package requestid tags every HTTP request with an id that flows through
// the request context into logs and the X-Request-ID response header.
package requestid
