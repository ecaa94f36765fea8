package gorm

import (
	"database/sql"
	"strings"
	"time"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// Every current and as-of read orders by these clauses.
const (
	orderLatest  = "t_from DESC, seq DESC"
	orderHistory = "t_from, seq"
	asOfWindow   = "t_from <= ? AND (t_to IS NULL OR t_to > ?)"
	closeRow     = "t_to = GREATEST(t_from, ?)"
)

// quote quotes an identifier. Identifiers come from a validated vault.Schema.
func quote(id string) string {
	return `"` + id + `"`
}

func quoteAll(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = quote(id)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(vault.DateLayout)
}

func businessDay(t time.Time) string {
	return t.UTC().Format(vault.DateLayout)
}
