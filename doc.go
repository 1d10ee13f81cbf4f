// Package auth provides the building blocks for distributed session-token
// management: credential storage, JWT issuance and verification, a durable
// revocation ledger, and the Sessions orchestrator that composes them.
//
// Session lifecycle:
//   - Register creates an identity and immediately establishes a session.
//     Identity creation and token minting are not atomic; when minting fails
//     the account still exists and the user recovers by logging in.
//   - Login verifies credentials and mints a short-lived access token plus a
//     long-lived refresh token. Access tokens are never persisted; refresh
//     tokens carry a jti so the ledger can reference them.
//   - Refresh exchanges a live refresh token for a new access token after
//     consulting the revocation ledger. A ledger outage denies the refresh.
//   - Logout and Unregister write the refresh token's jti to the ledger.
//     Revocation is permanent and idempotent.
//
// Credential handling:
//   - The IdentityStore boundary is the only place password hashes exist.
//     Verification failures collapse into a single invalid-credentials error
//     so responses cannot be used to enumerate usernames.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Sessions to
//     describe register, login, refresh, logout, and unregister events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication.
package auth
