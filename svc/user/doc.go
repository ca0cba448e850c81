// Package user stores the application user records the billing core reads
// and writes: the cached billing customer id and the local subscription mirror.
//
// Records are created by Ensure when a caller first authenticates. The
// billing customer id is written once by package customer; MongoStore keeps
// a unique sparse index on it so two users can never share a customer.
// MemoryStore serves development and tests.
package user
