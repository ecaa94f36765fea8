package audit

import "fmt"

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func severity(success bool) Severity {
	if success {
		return SeverityInfo
	}
	return SeverityWarning
}

func withError(msg, errMsg string) string {
	if errMsg != "" {
		return msg + ": " + errMsg
	}
	return msg
}

// LoginEvent represents a login attempt
type LoginEvent struct {
	Email        string
	ClientIP     string
	Success      bool
	ErrorMessage string
}

func (e LoginEvent) MessageID() string {
	return "login"
}

func (e LoginEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s successfully logged in", e.Email)
	}
	return withError(fmt.Sprintf("%s failed to log in", e.Email), e.ErrorMessage)
}

func (e LoginEvent) Severity() Severity {
	return severity(e.Success)
}

func (e LoginEvent) Facility() int {
	return FacilityAuthPriv
}

func (e LoginEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.Email,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "login",
			"result":    result(e.Success),
		},
	}
}

// RegistrationEvent represents a self registration
type RegistrationEvent struct {
	Email        string
	ClientIP     string
	Success      bool
	ErrorMessage string
}

func (e RegistrationEvent) MessageID() string {
	return "register"
}

func (e RegistrationEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s registered", e.Email)
	}
	return withError(fmt.Sprintf("%s failed to register", e.Email), e.ErrorMessage)
}

func (e RegistrationEvent) Severity() Severity {
	return severity(e.Success)
}

func (e RegistrationEvent) Facility() int {
	return FacilityAuth
}

func (e RegistrationEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"user": e.Email,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "register",
			"result":    result(e.Success),
		},
	}
}

// PasswordChangeEvent represents a password change audit event
type PasswordChangeEvent struct {
	UserID       string
	ClientIP     string
	Success      bool
	ErrorMessage string
}

func (e PasswordChangeEvent) MessageID() string {
	return "password"
}

func (e PasswordChangeEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s successfully changed their password", e.UserID)
	}
	return withError(fmt.Sprintf("%s failed to change their password", e.UserID), e.ErrorMessage)
}

func (e PasswordChangeEvent) Severity() Severity {
	return severity(e.Success)
}

func (e PasswordChangeEvent) Facility() int {
	return FacilityAuthPriv
}

func (e PasswordChangeEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "change-password",
			"result":    result(e.Success),
		},
	}
}

// EntityWriteEvent represents a create, update or delete of a portal entity
type EntityWriteEvent struct {
	UserID       string
	ClientIP     string
	Kind         string // "user", "project", "customer", "timeentry"
	EntityID     string
	Operation    string // "create", "update", "delete"
	Success      bool
	ErrorMessage string
}

func (e EntityWriteEvent) MessageID() string {
	return "write"
}

func (e EntityWriteEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s %sd %s %s", e.UserID, e.Operation, e.Kind, e.EntityID)
	}
	return withError(fmt.Sprintf("%s tried to %s %s %s", e.UserID, e.Operation, e.Kind, e.EntityID), e.ErrorMessage)
}

func (e EntityWriteEvent) Severity() Severity {
	if e.Success && e.Operation == "delete" {
		return SeverityNotice
	}
	return severity(e.Success)
}

func (e EntityWriteEvent) Facility() int {
	return FacilityAuth
}

func (e EntityWriteEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"kind": e.Kind,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    result(e.Success),
		},
	}
	if e.EntityID != "" {
		sd[SDIDSubject]["id"] = e.EntityID
	}
	return sd
}

// AccessDeniedEvent represents a request rejected for missing privileges
type AccessDeniedEvent struct {
	UserID   string
	ClientIP string
	Method   string
	Path     string
	Reason   string
}

func (e AccessDeniedEvent) MessageID() string {
	return "denied"
}

func (e AccessDeniedEvent) Message() string {
	return withError(fmt.Sprintf("%s was denied %s %s", e.UserID, e.Method, e.Path), e.Reason)
}

func (e AccessDeniedEvent) Severity() Severity {
	return SeverityWarning
}

func (e AccessDeniedEvent) Facility() int {
	return FacilityAuthPriv
}

func (e AccessDeniedEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"path": e.Path,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Method,
			"result":    "denied",
		},
	}
}
