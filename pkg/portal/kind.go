package portal

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

//go:generate go run github.com/dmarkham/enumer -type Kind -trimprefix Kind -transform lower -text -output kind.gen.go

// Kind names an entity type with its own hub.
type Kind int

const (
	KindUser Kind = iota
	KindProject
	KindCustomer
)

// Hub returns the hub table of the kind.
func (k Kind) Hub() *vault.HubTable {
	switch k {
	case KindUser:
		return UserHub
	case KindProject:
		return ProjectHub
	case KindCustomer:
		return CustomerHub
	}
	return nil
}

// NormalizeKey brings a business key of this kind into its stored form.
func (k Kind) NormalizeKey(s string) string {
	if k == KindUser {
		return NormalizeEmail(s)
	}
	return NormalizeName(s)
}

var fold = cases.Fold()

// NormalizeEmail trims, composes and case-folds an email address.
func NormalizeEmail(s string) string {
	return fold.String(norm.NFC.String(strings.TrimSpace(s)))
}

// NormalizeName trims and composes a project or customer name. Case is kept.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
