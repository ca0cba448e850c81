// Package customer resolves the stable ledger customer id of an application user.
//
// The id is cached on the user record after the first resolution. Until
// then Resolver looks for an existing customer in this order:
//
//  1. a metadata search on the application user id
//  2. an email search, or a plain list by email when the ledger has no
//     search index
//  3. creation of a new customer tagged with the user id
//
// Search failures degrade to the next step and are logged at warn. Creation
// carries IdempotencyKey so retries from any process reuse one customer; a
// failed creation is returned wrapped with ErrCreate.
//
// Concurrent first-time resolutions for one user share a single lookup. The
// shared work runs detached from the first caller's cancellation and is
// bounded by WithSharedTimeout; each caller stops waiting when its own
// context ends.
package customer
