// Command portalctl runs the employee portal backend.
//
// The portal keeps users, projects, customers and time entries in a
// bitemporal Data Vault schema on PostgreSQL: nothing is updated in place,
// every change closes the current row and inserts a new one, so any past
// state can be read back.
//
// # Quick Start
//
//	# Create or upgrade the schema
//	portalctl db migrate
//
//	# Start the server
//	export PORTAL_JWT_SECRET=$(openssl rand -hex 32)
//	portalctl server
//
//	# Make the first user an administrator
//	portalctl user promote alice@example.com
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - PORTAL_JWT_SECRET: HMAC key used to sign session tokens
//   - PORTAL_CONFIG_PATH: directory holding portal.yml (default: /etc/portal)
//   - PORTAL_LOG_LEVEL: set to debug to log SQL statements
//   - PORT: server port (default: 8000)
//
// The remaining PORTAL_* variables override portal.yml; see
// "portalctl configuration show".
package main
