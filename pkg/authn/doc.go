// Package authn verifies bearer JWTs issued by the identity provider.
//
// Production deployments point AUTH_JWKS_URL (or AUTH_ISSUER) at the
// provider's key set; AUTH_HMAC_SECRET enables HS256 tokens for local
// development and tests. Middleware rejects requests without a valid token
// and exposes the verified Claims through ClaimsFromContext and UserID.
package authn
