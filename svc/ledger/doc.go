// Package ledger is the boundary to the external subscription ledger.
//
// The rest of the application talks to the ledger only through the Client
// and NotificationDecoder interfaces and the normalized types defined here:
// Customer, Subscription, Price and Notification. Provider payloads are
// converted inside the adapters and never leak past this package.
//
// Three adapters are provided:
//
//   - StripeClient, backed by github.com/stripe/stripe-go
//   - PaddleClient, backed by github.com/PaddleHQ/paddle-go-sdk
//   - Memory, an in-process ledger for development and tests
//
// Every adapter wraps transport failures with ErrUnavailable. Search methods
// may return ErrSearchUnavailable when the provider has no search index;
// callers are expected to fall back to ListCustomersByEmail.
//
// Notification verification accepts a list of secrets and tries them in
// order, so a signing secret can be rotated without dropping deliveries.
package ledger
