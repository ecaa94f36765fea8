package portal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/authn"
	"github.com/mitarbeiterportal/portal/pkg/vault"
	"github.com/mitarbeiterportal/portal/pkg/vault/coordinator"
)

// User is the profile view of a user.
type User struct {
	Key            uuid.UUID   `json:"hk_user"`
	Email          string      `json:"email"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Position       string      `json:"position"`
	Telefon        string      `json:"telefon"`
	CoreHoursStart *string     `json:"coreHoursStart"`
	CoreHoursEnd   *string     `json:"coreHoursEnd"`
	IsAdmin        bool        `json:"isAdmin"`
	CurrentProject *ProjectRef `json:"currentProject"`
}

// ProjectRef names a project.
type ProjectRef struct {
	Key  uuid.UUID `json:"hk_project"`
	Name string    `json:"project_name"`
}

// Registration is the input of Register.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PasswordChange is the input of ChangePassword.
type PasswordChange struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

var profileFields = map[string]bool{
	"first_name":       true,
	"last_name":        true,
	"position":         true,
	"telefon":          true,
	"core_hours_start": true,
	"core_hours_end":   true,
}

// Accounts manages users.
type Accounts struct {
	base
}

// Register creates a user with details and login.
func (a *Accounts) Register(ctx context.Context, r Registration) (*User, error) {
	email := NormalizeEmail(r.Email)
	verr := &vault.ValidationError{}
	if email == "" {
		verr.Add("email", "is required")
	} else if !strings.Contains(email, "@") {
		verr.Add("email", "must be an email address")
	}
	a.checkPassword(verr, "password", r.Password)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := authn.HashPassword(r.Password)
	if err != nil {
		return nil, err
	}

	key, err := a.coord.CreateEntity(ctx, UserHub, email, coordinator.Change{
		Payloads: map[*vault.SatelliteTable]vault.Payload{
			UserDetails: {
				"first_name": strings.TrimSpace(r.FirstName),
				"last_name":  strings.TrimSpace(r.LastName),
				"is_admin":   false,
			},
			UserLogin: {"password_hash": hash},
		},
		Source: "register",
	})
	if err != nil {
		return nil, err
	}
	return a.Profile(ctx, key, nil)
}

// Authenticate checks the password of the active user with email.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*User, error) {
	key, err := a.engine.FindHub(ctx, UserHub, NormalizeEmail(email))
	if errors.Is(err, vault.ErrHubNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := a.verify(ctx, key, password); err != nil {
		return nil, err
	}
	return a.Profile(ctx, key, nil)
}

func (a *Accounts) verify(ctx context.Context, key uuid.UUID, password string) error {
	login, err := a.engine.Payload(ctx, UserLogin, key, nil)
	if errors.Is(err, vault.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	err = authn.CheckPassword(login.String("password_hash"), password)
	if errors.Is(err, authn.ErrPasswordMismatch) {
		return ErrInvalidCredentials
	}
	return err
}

// Profile returns the user at *at, or now when at is nil.
func (a *Accounts) Profile(ctx context.Context, key uuid.UUID, at *time.Time) (*User, error) {
	hub, err := a.engine.Hub(ctx, UserHub, key)
	if err != nil {
		return nil, err
	}
	details, err := optional(a.engine.Payload(ctx, UserDetails, key, at))
	if err != nil {
		return nil, err
	}

	u := &User{
		Key:            hub.Key,
		Email:          hub.BusinessKey,
		FirstName:      details.String("first_name"),
		LastName:       details.String("last_name"),
		Position:       details.String("position"),
		Telefon:        details.String("telefon"),
		CoreHoursStart: stringPtr(details, "core_hours_start"),
		CoreHoursEnd:   stringPtr(details, "core_hours_end"),
		IsAdmin:        details.Bool("is_admin"),
	}

	link, err := a.engine.Link(ctx, UserCurrentProject, key, uuid.Nil, at)
	switch {
	case err == nil:
		ref, err := a.projectRef(ctx, link.Members["hk_project"])
		if err != nil {
			return nil, err
		}
		u.CurrentProject = ref
	case !errors.Is(err, vault.ErrNotFound):
		return nil, err
	}
	return u, nil
}

func (b base) projectRef(ctx context.Context, key uuid.UUID) (*ProjectRef, error) {
	hub, err := b.engine.Hub(ctx, ProjectHub, key)
	if err != nil {
		return nil, err
	}
	return &ProjectRef{Key: hub.Key, Name: hub.BusinessKey}, nil
}

// UpdateProfile patches the profile fields in patch. A "current_project"
// key sets the current project; null or "" clears it.
func (a *Accounts) UpdateProfile(ctx context.Context, key uuid.UUID, patch vault.Payload) (*User, error) {
	patch = patch.Clone()
	change := coordinator.Change{Source: "profile", Check: checkCoreHours}

	if v, ok := take(patch, "current_project"); ok {
		project, err := parseKey("current_project", v)
		if err != nil {
			return nil, err
		}
		if project == uuid.Nil {
			change.Unlinks = []*vault.LinkTable{UserCurrentProject}
		} else {
			if err := a.member(ctx, ProjectHub, project, "current_project"); err != nil {
				return nil, err
			}
			change.Links = []coordinator.LinkChange{{
				Table:   UserCurrentProject,
				Members: map[string]uuid.UUID{"hk_project": project},
			}}
		}
	}

	verr := &vault.ValidationError{}
	for _, k := range patch.Keys() {
		if !profileFields[k] {
			verr.Add(k, "cannot be changed")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if len(patch) > 0 {
		change.Patches = map[*vault.SatelliteTable]vault.Payload{UserDetails: patch}
	}

	if err := a.coord.UpdateEntity(ctx, UserHub, key, change); err != nil {
		return nil, err
	}
	return a.Profile(ctx, key, nil)
}

func checkCoreHours(sat *vault.SatelliteTable, p vault.Payload) error {
	if sat != UserDetails {
		return nil
	}
	start, end := p.String("core_hours_start"), p.String("core_hours_end")
	if start == "" || end == "" {
		return nil
	}
	s, err1 := vault.ParseClock(start)
	e, err2 := vault.ParseClock(end)
	if err1 == nil && err2 == nil && !e.After(s) {
		return vault.NewValidationError("core_hours_end", "must be after core_hours_start")
	}
	return nil
}

// ChangePassword replaces the password after verifying the current one.
func (a *Accounts) ChangePassword(ctx context.Context, key uuid.UUID, c PasswordChange) error {
	verr := &vault.ValidationError{}
	if c.Current == "" {
		verr.Add("current_password", "is required")
	}
	if c.New != c.Confirm {
		verr.Add("confirm_password", "does not match new_password")
	}
	a.checkPassword(verr, "new_password", c.New)
	if err := verr.OrNil(); err != nil {
		return err
	}

	if err := a.verify(ctx, key, c.Current); err != nil {
		return err
	}
	hash, err := authn.HashPassword(c.New)
	if err != nil {
		return err
	}
	return a.coord.UpdateEntity(ctx, UserHub, key, coordinator.Change{
		Payloads: map[*vault.SatelliteTable]vault.Payload{UserLogin: {"password_hash": hash}},
		Source:   "password",
	})
}

func (a *Accounts) checkPassword(verr *vault.ValidationError, field, password string) {
	if len([]rune(password)) < a.settings.MinPasswordLength {
		verr.Add(field, "must be at least %d characters", a.settings.MinPasswordLength)
	}
}

// SetAdmin grants or revokes the admin flag of the active user with email.
func (a *Accounts) SetAdmin(ctx context.Context, email string, admin bool) (*User, error) {
	key, err := a.engine.FindHub(ctx, UserHub, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	err = a.coord.UpdateEntity(ctx, UserHub, key, coordinator.Change{
		Patches: map[*vault.SatelliteTable]vault.Payload{UserDetails: {"is_admin": admin}},
		Source:  "admin",
	})
	if err != nil {
		return nil, err
	}
	return a.Profile(ctx, key, nil)
}

// IsAdmin reports whether key is an active user whose current details carry
// the admin flag.
func (a *Accounts) IsAdmin(ctx context.Context, key uuid.UUID) (bool, error) {
	hub, err := a.engine.Hub(ctx, UserHub, key)
	if errors.Is(err, vault.ErrHubNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !hub.Active() {
		return false, nil
	}
	details, err := optional(a.engine.Payload(ctx, UserDetails, key, nil))
	if err != nil {
		return false, err
	}
	return details.Bool("is_admin"), nil
}

// List returns every active user, ordered by email.
func (a *Accounts) List(ctx context.Context) ([]User, error) {
	hubs, err := a.engine.ActiveHubs(ctx, UserHub)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(hubs))
	for _, h := range hubs {
		u, err := a.Profile(ctx, h.Key, nil)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

// Delete closes the user, its details, its current project and its time
// entries.
func (a *Accounts) Delete(ctx context.Context, key uuid.UUID) error {
	return a.coord.DeleteEntity(ctx, UserHub, key)
}
