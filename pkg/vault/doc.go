// Package vault defines the bitemporal storage model of the portal.
//
// Entities are stored as hubs (durable identity), satellites (versioned
// attribute payloads) and links (versioned associations between hubs). No row
// is updated in place: a logical update closes the open row by setting t_to
// and inserts a new one with t_from = now, so every prior state stays
// queryable by its [t_from, t_to) window.
//
// # Tables
//
// The engine is generic over table definitions:
//
//	users := &vault.HubTable{Name: "h_user", Key: "hk_user", BusinessKey: "user_id"}
//	details := &vault.SatelliteTable{
//	    Name:  "s_user_details",
//	    Owner: users,
//	    Attributes: []vault.Attribute{
//	        {Name: "first_name", Type: vault.Text},
//	        {Name: "is_admin", Type: vault.Boolean},
//	    },
//	}
//
// Every table carries t_from, t_to, rec_src and a bigserial seq column.
// Satellites and links also carry the business interval b_from, b_to.
//
// # Ordering
//
// When more than one row qualifies for a point in time the row with the
// latest t_from wins, then the highest seq. Implementations must use this
// ordering for every current and as-of read.
//
// # Errors
//
// Implementations return the sentinel errors of this package, wrapped with
// context where useful. Use errors.Is to classify them; *ValidationError
// matches ErrValidation and carries field-level detail.
package vault
