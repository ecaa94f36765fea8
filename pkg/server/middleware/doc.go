// Package middleware holds the HTTP middleware of the portal API: bearer
// token authentication, the admin guard and the request timeout.
package middleware
