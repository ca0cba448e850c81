// Package compare exposes POST /api/compare. A request carries exactly two
// images under the multipart field "images" and an optional "prompt".
//
// The order of checks is fixed:
//
//  1. authentication
//  2. the per-user burst limit, when a limiter is configured
//  3. input validation: two decodable images within the size limit
//  4. the quota gate, which consumes one unit of the daily allowance
//  5. the inference call
//
// Invalid input therefore never costs quota, and the inference service is
// only reached by callers with allowance left. The remaining allowance is
// returned in the response meta. Errors are mapped to responses by Errors.
package compare
