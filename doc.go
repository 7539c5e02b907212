/*
Package linkauthn provides passwordless, email-based login links and the
short-lived server-side sessions they open.

The flow is the following:

 1. A user wants to login. They provide their email address.
 2. A single-use login link is emailed to them by Authenticator.Issue().
 3. The user follows the link, whose token is checked by Authenticator.Redeem().
 4. If the token was valid, SessionManager.Open() creates a session whose
    reference is handed to the client (e.g. in a cookie).
 5. Every protected request is checked by AccessGate.Authorize(), which yields
    the Identity of the user or ErrUnauthenticated.
 6. The user can be logged out by calling SessionManager.Destroy().

A user has at most one pending login token: issuing a new one invalidates the
previous one. A token is valid for Config.TokenTTL from issuance and can be
redeemed once. A session is valid for SessionConfig.TTL from its creation,
independently of the token that opened it.

Pending secrets live next to the user accounts, in MongoDB (MongoStore) accessed
via the official mongo-go driver. Sessions may be kept in memory
(MemorySessionStore) or in Redis (RedisSessionStore).
*/
package linkauthn
