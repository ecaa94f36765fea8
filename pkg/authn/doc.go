// Package authn issues and verifies portal access tokens and hashes
// passwords.
//
// Tokens are HS256 JWTs. The subject is the user hub key; the claims also
// carry the normalized email and the admin flag at issue time.
//
//	tokens := authn.NewTokens(secret, "portal", time.Hour)
//	signed, err := tokens.Issue(claims)
//	claims, err := tokens.Verify(signed)
//
// Passwords are hashed with bcrypt. The vault only ever stores the hash.
package authn
