package portal

import "github.com/mitarbeiterportal/portal/pkg/vault"

// Hubs.
var (
	UserHub     = &vault.HubTable{Name: "h_user", Key: "hk_user", BusinessKey: "user_id"}
	ProjectHub  = &vault.HubTable{Name: "h_project", Key: "hk_project", BusinessKey: "project_name"}
	CustomerHub = &vault.HubTable{Name: "h_customer", Key: "hk_customer", BusinessKey: "customer_name"}
)

// Links.
var (
	ProjectCustomer = &vault.LinkTable{
		Name:   "l_project_customer",
		Key:    "hk_project_customer",
		Anchor: vault.Member{Column: "hk_project", Hub: ProjectHub},
		Others: []vault.Member{{Column: "hk_customer", Hub: CustomerHub}},
	}
	UserCurrentProject = &vault.LinkTable{
		Name:   "l_user_current_project",
		Key:    "hk_user_current_project",
		Anchor: vault.Member{Column: "hk_user", Hub: UserHub},
		Others: []vault.Member{{Column: "hk_project", Hub: ProjectHub}},
	}
	UserProjectTimeEntry = &vault.LinkTable{
		Name:      "l_user_project_timeentry",
		Key:       "hk_user_project_timeentry",
		Anchor:    vault.Member{Column: "hk_user", Hub: UserHub},
		Others:    []vault.Member{{Column: "hk_project", Hub: ProjectHub}},
		NaturalID: "timeentry_id",
	}
)

// Satellites.
var (
	UserDetails = &vault.SatelliteTable{
		Name:  "s_user_details",
		Owner: UserHub,
		Attributes: []vault.Attribute{
			{Name: "first_name", Type: vault.Text},
			{Name: "last_name", Type: vault.Text},
			{Name: "position", Type: vault.Text},
			{Name: "telefon", Type: vault.Text},
			{Name: "core_hours_start", Type: vault.TimeOfDay},
			{Name: "core_hours_end", Type: vault.TimeOfDay},
			{Name: "is_admin", Type: vault.Boolean},
		},
	}
	UserLogin = &vault.SatelliteTable{
		Name:  "s_user_login",
		Owner: UserHub,
		Attributes: []vault.Attribute{
			{Name: "password_hash", Type: vault.Text, Required: true},
		},
	}
	ProjectDetails = &vault.SatelliteTable{
		Name:         "s_project_details",
		Owner:        ProjectHub,
		BusinessFrom: "start_date",
		BusinessTo:   "end_date",
		Attributes: []vault.Attribute{
			{Name: "start_date", Type: vault.Date},
			{Name: "end_date", Type: vault.Date},
			{Name: "budget_days", Type: vault.Numeric},
			{Name: "description", Type: vault.Text},
		},
	}
	CustomerDetails = &vault.SatelliteTable{
		Name:  "s_customer_details",
		Owner: CustomerHub,
		Attributes: []vault.Attribute{
			{Name: "address", Type: vault.Text},
			{Name: "contact_person", Type: vault.Text},
		},
	}
	TimeEntryDetails = &vault.SatelliteTable{
		Name:         "s_timeentry_details",
		Owner:        UserProjectTimeEntry,
		BusinessFrom: "entry_date",
		Attributes: []vault.Attribute{
			{Name: "entry_date", Type: vault.Date, Required: true},
			{Name: "start_time", Type: vault.TimeOfDay, Required: true},
			{Name: "end_time", Type: vault.TimeOfDay, Required: true},
			{Name: "pause_minutes", Type: vault.Integer},
			{Name: "work_location", Type: vault.Text},
			{Name: "description", Type: vault.Text},
		},
	}
)

// Schema is the portal's vault schema. Its tables match db/migrations.
var Schema = &vault.Schema{
	Hubs:  []*vault.HubTable{UserHub, ProjectHub, CustomerHub},
	Links: []*vault.LinkTable{ProjectCustomer, UserCurrentProject, UserProjectTimeEntry},
	Satellites: []*vault.SatelliteTable{
		UserDetails, UserLogin, ProjectDetails, CustomerDetails, TimeEntryDetails,
	},
}
