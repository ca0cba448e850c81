// Package billing serves the subscription endpoints: the status read-out,
// billing portal sessions and the ledger's lifecycle notifications.
//
// Routes, relative to where the router is mounted:
//
//	POST /status   bearer token
//	POST /portal   bearer token, {"intent": "update"|"cancel"|"resume"|"none"}
//	POST /webhook  ledger signature
//
// # Status
//
// The status read-out queries the live ledger, never the local mirror. It
// returns "plan" as null when the caller has no usable subscription and
// "status" as the raw ledger status of the newest subscription, or null
// when the caller never subscribed. Today's quota usage is attached on a
// best effort basis.
//
// # Portal
//
// Cancel and update intents are scoped to the caller's current
// subscription. Without one they fall back to the general portal.
//
// # Webhook
//
// The webhook is authenticated by the ledger's signature. Outside
// production, AllowUnsignedWebhooks lets unsigned test payloads through.
// Once a notification has been parsed it is always acknowledged, and
// processing failures are only logged so the ledger does not retry a
// notification that can never succeed.
//
// Errors are mapped to responses by Errors.
package billing
