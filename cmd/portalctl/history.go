package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mitarbeiterportal/portal/pkg/portal"
)

type historyReader interface {
	ByBusinessKey(ctx context.Context, kind portal.Kind, businessKey string, at *time.Time) (*portal.EntityHistory, error)
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <kind> <business-key>",
	Short: "Show the full history of an entity",
	Long: `Show the full history of an active user, project or customer.

The kind is one of user, project or customer. The business key is the
email of a user or the name of a project or customer. Every satellite
version is printed; --as-of selects which payloads are shown as visible.

Example:
  portalctl history user alice@example.com
  portalctl history project Apollo --as-of 2024-03-01T12:00:00Z`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		asOf, _ := cmd.Flags().GetString("as-of")

		services, closeFn, err := openServices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to connect to DB: %v\n", err)
			os.Exit(1)
		}
		defer closeFn()

		if err := showHistory(cmd.Context(), cmd.OutOrStdout(), services.History, args[0], args[1], asOf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			closeFn()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("as-of", "", "RFC 3339 instant to read payloads at (default: now)")
}

func parseAsOf(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of %q: expected RFC 3339", s)
	}
	return &t, nil
}

func showHistory(ctx context.Context, w io.Writer, history historyReader, kindName, businessKey, asOf string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	kind, err := portal.KindString(strings.ToLower(kindName))
	if err != nil {
		return fmt.Errorf("unknown kind %q: expected one of %v", kindName, portal.KindStrings())
	}
	at, err := parseAsOf(asOf)
	if err != nil {
		return err
	}

	h, err := history.ByBusinessKey(ctx, kind, businessKey, at)
	if err != nil {
		return fmt.Errorf("failed to read history of %s %s: %w", kind, businessKey, err)
	}

	out, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
