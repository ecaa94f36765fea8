// Package audit provides audit logging for portal security events.
//
// Events are written as RFC5424 syslog lines to stdout and, once a Store is
// installed with Use, persisted to the messages table over the application's
// own connection pool.
//
// # Event Types
//
//   - LoginEvent: login attempts
//   - RegistrationEvent: self registration
//   - PasswordChangeEvent: password changes
//   - EntityWriteEvent: creates, updates and deletes of users, projects,
//     customers and time entries
//   - AccessDeniedEvent: requests rejected by the admin guard
//
// # Usage
//
//	audit.Log(audit.LoginEvent{Email: email, ClientIP: ip, Success: true})
//
// Logging is skipped entirely when PORTAL_AUDIT_ENABLED=false.
package audit
