// Package authclient implements the client side of a session based web
// application: an API client that proves the session with a bearer token or
// cookies, a store that owns the session lifecycle, and a route guard.
//
// Transport:
//   - Client runs in exactly one TransportMode. In token mode the bearer token
//     comes from a TokenSource, normally the Store. In cookie mode the session
//     lives in an http.CookieJar; use PersistentJar to keep it across restarts.
//   - A 401 on an authenticated cookie mode request triggers a single POST
//     /refresh followed by a single retry. The retry result is final.
//
// Session lifecycle:
//   - Store is seeded from Storage at construction without any network call.
//     Login, Register and Logout never return errors, they return a Result and
//     surface messages through the Notifier.
//   - Logout and expiry bump the session Generation so results of requests
//     still in flight are discarded instead of resurrecting the session.
//   - Authorized wraps authenticated calls and expires the session locally
//     when the server keeps rejecting it.
//
// Routing:
//   - Guard evaluates a RouteTable against the Store. Router implements
//     Navigator on top of it, following redirects with replace semantics.
package authclient
