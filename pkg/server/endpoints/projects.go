package endpoints

import (
	"net/http"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/identity"
	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server"
)

func RegisterProjectsEndpoints(s *server.Server) {
	projectsRouter := s.API.PathPrefix("/projects").Subrouter()
	projectsRouter.Use(s.JWTMiddleware.Middleware)

	projectsRouter.HandleFunc("", handleListProjects(s.Projects)).Methods("GET")
	projectsRouter.HandleFunc("", handleCreateProject(s.Projects)).Methods("POST")
	projectsRouter.HandleFunc("/{id}", handleGetProject(s.Projects)).Methods("GET")
	projectsRouter.HandleFunc("/{id}", handleUpdateProject(s.Projects)).Methods("PUT")
	projectsRouter.HandleFunc("/{id}", handleDeleteProject(s.Projects)).Methods("DELETE")
}

func handleListProjects(projects server.ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := projects.List(r.Context())
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, list)
	}
}

func handleGetProject(projects server.ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := pathKey(w, r, "id")
		if !ok {
			return
		}
		at, ok := asOf(w, r)
		if !ok {
			return
		}
		project, err := projects.Get(r.Context(), key, at)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, project)
	}
}

func handleCreateProject(projects server.ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		input, ok := decodePayload(w, r)
		if !ok {
			return
		}

		project, err := projects.Create(r.Context(), input, source(id))
		logWrite(id, portal.KindProject.String(), input.String("project_name"), "create", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, project)
	}
}

func handleUpdateProject(projects server.ProjectService) http.HandlerFunc {
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

		project, err := projects.Update(r.Context(), key, input, source(id))
		logWrite(id, portal.KindProject.String(), key.String(), "update", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, project)
	}
}

func handleDeleteProject(projects server.ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		key, ok := pathKey(w, r, "id")
		if !ok {
			return
		}

		err := projects.Delete(r.Context(), key)
		logWrite(id, portal.KindProject.String(), key.String(), "delete", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// logWrite records an entity write of the caller.
func logWrite(id *identity.Identity, kind, entity, operation string, err error) {
	audit.Log(audit.EntityWriteEvent{
		UserID:       id.Email,
		ClientIP:     id.ClientIP(),
		Kind:         kind,
		EntityID:     entity,
		Operation:    operation,
		Success:      err == nil,
		ErrorMessage: errorMessage(err),
	})
}
