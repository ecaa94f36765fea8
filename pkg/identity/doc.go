// Package identity carries the authenticated user of a request.
//
// The bearer-token middleware verifies the token, builds an Identity from
// its claims and stores it in the request context:
//
//	id, err := identity.FromClaims(claims)
//	ctx = identity.Set(ctx, id.WithRemoteIP(clientIP))
//
// Handlers retrieve it with identity.Get. The user key is the hub key of
// the user; it is never taken from the request body.
package identity
