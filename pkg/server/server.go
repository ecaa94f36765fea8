package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mitarbeiterportal/portal/pkg/authn"
	"github.com/mitarbeiterportal/portal/pkg/config"
	"github.com/mitarbeiterportal/portal/pkg/server/middleware"
	"github.com/mitarbeiterportal/portal/pkg/server/store"
)

// Services are the portal operations the endpoints call.
type Services struct {
	Accounts    AccountService
	Projects    ProjectService
	Customers   CustomerService
	TimeEntries TimeEntryService
	Dashboard   DashboardService
	History     HistoryService
	Health      store.HealthStore
}

type Server struct {
	Services
	Tokens        *authn.Tokens
	Config        *config.PortalConfig
	Router        *mux.Router
	API           *mux.Router
	JWTMiddleware *middleware.JWTAuthenticator
	srv           *http.Server
}

func NewServer(
	services Services,
	tokens *authn.Tokens,
	cfg *config.PortalConfig,
	host string,
	port string,
) *Server {
	router := mux.NewRouter()
	timeout := cfg.RequestTimeout()
	router.Use(middleware.Timeout(timeout))

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)

	srv := &http.Server{
		Handler:      handlers.LoggingHandler(os.Stdout, cors(router)),
		Addr:         host + ":" + port,
		WriteTimeout: timeout + 5*time.Second,
		ReadTimeout:  timeout,
	}

	return &Server{
		Services:      services,
		Tokens:        tokens,
		Config:        cfg,
		Router:        router,
		API:           router.PathPrefix("/api").Subrouter(),
		JWTMiddleware: middleware.NewJWTAuthenticator(tokens),
		srv:           srv,
	}
}

// Handler returns the router wrapped in the access log and CORS handlers.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
