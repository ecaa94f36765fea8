package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/portal"
)

// adminSetter is the part of portal.Accounts the role commands use.
type adminSetter interface {
	SetAdmin(ctx context.Context, email string, admin bool) (*portal.User, error)
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <email>...",
	Short: "Grant administrator rights to users",
	Long: `Grant administrator rights to users.

The change is recorded as a new version of the user's details; the
previous version stays readable through the history commands.

Example:
  portalctl user promote alice@example.com`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSetAdmin(cmd, args, true)
	},
}

var userDemoteCmd = &cobra.Command{
	Use:   "demote <email>...",
	Short: "Revoke administrator rights from users",
	Long: `Revoke administrator rights from users.

Example:
  portalctl user demote alice@example.com`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSetAdmin(cmd, args, false)
	},
}

func init() {
	userCmd.AddCommand(userPromoteCmd)
	userCmd.AddCommand(userDemoteCmd)
}

func runSetAdmin(cmd *cobra.Command, emails []string, admin bool) {
	services, closeFn, err := openServices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to DB: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	if err := setAdmin(cmd.Context(), cmd.OutOrStdout(), services.Accounts, emails, admin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		closeFn()
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, w io.Writer, accounts adminSetter, emails []string, admin bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	verb := "Promoted"
	if !admin {
		verb = "Demoted"
	}
	for _, email := range emails {
		user, err := accounts.SetAdmin(ctx, email, admin)
		audit.Log(audit.EntityWriteEvent{
			Kind:         "user",
			EntityID:     email,
			Operation:    "update",
			Success:      err == nil,
			ErrorMessage: errString(err),
		})
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", email, err)
		}
		fmt.Fprintf(w, "%s %s (%s)\n", verb, user.Email, user.Key)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
