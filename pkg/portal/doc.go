// Package portal implements the employee portal on top of the vault.
//
// The schema (hubs, satellites and links) is declared in schema.go. The
// services translate portal requests into temporal reads and coordinator
// writes:
//
//   - Accounts: registration, login, profile, passwords and admin flags
//   - Projects and Customers: master data with their customer link
//   - TimeEntries: per-user bookings keyed by a natural time entry id
//   - Dashboard: hour aggregates over business date ranges
//   - History: hub, current and as-of payloads and every satellite version
//
// Business keys are normalized before they reach the store: emails are
// case folded, names are only composed and trimmed.
package portal
