// Package config provides configuration management for the portal server.
//
// Settings are resolved in this order, later sources winning:
//
//   - built-in defaults
//   - $PORTAL_CONFIG_PATH/portal.yml (default directory /etc/portal)
//   - PORTAL_* environment variables, including those from a .env file
//
// The source of every value is tracked and shown by
// "portalctl configuration show". Watch reloads the file on change.
//
// # Key Configuration Options
//
//   - PORTAL_TOKEN_TTL: Token lifetime in seconds
//   - PORTAL_WRITE_RETRIES: Retries after a concurrent modification
//   - PORTAL_REQUEST_TIMEOUT: Per-request timeout in seconds
//   - PORTAL_CORS_ALLOWED_ORIGINS: Comma separated origins
//
// Secrets are not part of the configuration: the server reads
// PORTAL_JWT_SECRET and DATABASE_URL from the environment.
package config
