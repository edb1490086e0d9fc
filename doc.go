// Package auth resolves marketplace identities and drives the supplier
// lifecycle.
//
// Identity:
//   - Buyers, suppliers and admins are separate account kinds with their own
//     session slot. TokenService signs one HS256 JWT per role and
//     IdentityResolver walks the session tokens first, then an optional
//     federated session store, and returns the first actor found.
//   - RouteAuthenticator wraps the resolver as go-router middleware and owns
//     the per role cookies.
//
// Supplier lifecycle:
//   - LifecycleEngine moves suppliers across pending, approved, suspended and
//     banned. Every transition bumps the row version, appends to the activity
//     log in the same transaction and then fans out to the ActivitySink and
//     NotificationGateway.
//   - Trial windows, extension requests and paid subscriptions feed
//     DeriveAccess, which is a pure function of the supplier record and the
//     current time.
//
// Activity sinks run best effort. A failing sink is logged and never fails
// the operation that produced the event.
package auth
