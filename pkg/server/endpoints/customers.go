package endpoints

import (
	"net/http"

	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server"
)

func RegisterCustomersEndpoints(s *server.Server) {
	customersRouter := s.API.PathPrefix("/customers").Subrouter()
	customersRouter.Use(s.JWTMiddleware.Middleware)

	customersRouter.HandleFunc("", handleListCustomers(s.Customers)).Methods("GET")
	customersRouter.HandleFunc("", handleCreateCustomer(s.Customers)).Methods("POST")
	customersRouter.HandleFunc("/{id}", handleGetCustomer(s.Customers)).Methods("GET")
	customersRouter.HandleFunc("/{id}", handleUpdateCustomer(s.Customers)).Methods("PUT")
	customersRouter.HandleFunc("/{id}", handleDeleteCustomer(s.Customers)).Methods("DELETE")
}

var customerKind = portal.KindCustomer.String()

func handleListCustomers(customers server.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := customers.List(r.Context())
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, list)
	}
}

func handleGetCustomer(customers server.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := pathKey(w, r, "id")
		if !ok {
			return
		}
		at, ok := asOf(w, r)
		if !ok {
			return
		}
		customer, err := customers.Get(r.Context(), key, at)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, customer)
	}
}

func handleCreateCustomer(customers server.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		input, ok := decodePayload(w, r)
		if !ok {
			return
		}

		customer, err := customers.Create(r.Context(), input, source(id))
		logWrite(id, customerKind, input.String("customer_name"), "create", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, customer)
	}
}

func handleUpdateCustomer(customers server.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		key, ok := pathKey(w, r, "id")
		if !ok {
			return
		}
		input, ok := decodePayload(w, r)
		if !ok {
			return
		}

		customer, err := customers.Update(r.Context(), key, input, source(id))
		logWrite(id, customerKind, key.String(), "update", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, customer)
	}
}

func handleDeleteCustomer(customers server.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		key, ok := pathKey(w, r, "id")
		if !ok {
			return
		}

		err := customers.Delete(r.Context(), key)
		logWrite(id, customerKind, key.String(), "delete", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
