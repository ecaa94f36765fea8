package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/authn"
	"github.com/mitarbeiterportal/portal/pkg/config"
	"github.com/mitarbeiterportal/portal/pkg/db"
	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server"
	"github.com/mitarbeiterportal/portal/pkg/server/endpoints"
	gormstore "github.com/mitarbeiterportal/portal/pkg/server/store/gorm"
	vaultgorm "github.com/mitarbeiterportal/portal/pkg/vault/gorm"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

func defaultPortInt() int {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return 8000
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the portal application server",
	Long: `Run the portal application server.

To run the server requires the environment variables PORTAL_JWT_SECRET and DATABASE_URL.

By default, database migrations are run on startup. Use --no-migrate to skip.
With --watch-config the server reloads portal.yml when it changes; the token
lifetime and the audit switch take effect without a restart.`,
	Run: func(cmd *cobra.Command, args []string) {
		secret, ok := os.LookupEnv("PORTAL_JWT_SECRET")
		if !ok || secret == "" {
			fmt.Fprintln(os.Stderr, "PORTAL_JWT_SECRET environment variable is required")
			os.Exit(1)
		}

		if db.URL() == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL environment variable is required")
			os.Exit(1)
		}

		cfg, err := loadServerConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		audit.SetEnabled(cfg.AuditEnabled)

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		conn, err := db.Connect(db.Config{ConnMaxLifetime: 30 * time.Minute})
		if err != nil {
			fmt.Println("Unable to connect to DB:", err)
			os.Exit(1)
		}
		audit.Use(audit.NewStore(conn))

		store, err := vaultgorm.NewStore(conn, portal.Schema)
		if err != nil {
			fmt.Println("Unable to open vault:", err)
			os.Exit(1)
		}

		services := portal.NewServices(store, settingsFrom(cfg))
		tokens := authn.NewTokens([]byte(secret), cfg.JWTIssuer, cfg.TokenTTL())

		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		s := server.NewServer(server.FromPortal(services, gormstore.NewHealthStore(conn)), tokens, cfg, host, port)
		endpoints.RegisterAll(s)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watch, _ := cmd.Flags().GetBool("watch-config")
		if watch {
			err := config.Watch(ctx, func(next *config.PortalConfig) {
				audit.SetEnabled(next.AuditEnabled)
				tokens.SetTTL(next.TokenTTL())
			})
			if err != nil {
				log.Printf("Config watch disabled: %v", err)
			}
		}

		go func() {
			<-ctx.Done()
			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Printf("Shutdown failed: %v", err)
			}
		}()

		log.Printf("Running server at http://%s:%s...\n", host, port)
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
	serverCmd.Flags().Bool("watch-config", false, "reload the config file when it changes")
}

func loadServerConfig() (*config.PortalConfig, error) {
	if err := config.Reload(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config.Get(), nil
}

func settingsFrom(cfg *config.PortalConfig) portal.Settings {
	return portal.Settings{
		WriteRetries:        cfg.WriteRetries,
		MinPasswordLength:   cfg.MinPasswordLength,
		DefaultWorkLocation: cfg.DefaultWorkLocation,
	}
}
