package endpoints

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

const timeEntryKind = "timeentry"

func RegisterTimeEntriesEndpoints(s *server.Server) {
	entriesRouter := s.API.PathPrefix("/time-entries").Subrouter()
	entriesRouter.Use(s.JWTMiddleware.Middleware)

	entriesRouter.HandleFunc("", handleListTimeEntries(s.TimeEntries)).Methods("GET")
	entriesRouter.HandleFunc("", handleCreateTimeEntry(s.TimeEntries)).Methods("POST")
	entriesRouter.HandleFunc("/{id}", handleGetTimeEntry(s.TimeEntries)).Methods("GET")
	entriesRouter.HandleFunc("/{id}", handleUpdateTimeEntry(s.TimeEntries)).Methods("PUT")
	entriesRouter.HandleFunc("/{id}", handleDeleteTimeEntry(s.TimeEntries)).Methods("DELETE")
	entriesRouter.HandleFunc("/{id}/history", handleTimeEntryHistory(s.TimeEntries)).Methods("GET")
}

// monthQuery parses the optional year and month query parameters. Both or
// neither must be given.
func monthQuery(w http.ResponseWriter, r *http.Request) (*portal.Month, bool) {
	q := r.URL.Query()
	year, month := q.Get("year"), q.Get("month")
	if year == "" && month == "" {
		return nil, true
	}

	verr := &vault.ValidationError{}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 || y > 9999 {
		verr.Add("year", "must be a year")
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		verr.Add("month", "must be between 1 and 12")
	}
	if len(verr.Fields) > 0 {
		respondWithError(w, http.StatusBadRequest, "Validation failed", verr.Fields...)
		return nil, false
	}
	return &portal.Month{Year: y, Month: time.Month(m)}, true
}

func handleListTimeEntries(entries server.TimeEntryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		month, ok := monthQuery(w, r)
		if !ok {
			return
		}

		list, err := entries.List(r.Context(), id.UserKey, month)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		if list == nil {
			list = []portal.TimeEntry{}
		}
		respondWithJSON(w, http.StatusOK, list)
	}
}

func handleGetTimeEntry(entries server.TimeEntryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		entryID, ok := pathKey(w, r, "id")
		if !ok {
			return
		}

		entry, err := entries.Get(r.Context(), id.UserKey, entryID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, entry)
	}
}

func handleCreateTimeEntry(entries server.TimeEntryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		input, ok := decodePayload(w, r)
		if !ok {
			return
		}

		entry, err := entries.Create(r.Context(), id.UserKey, input, source(id))
		entity := ""
		if entry != nil {
			entity = entry.ID.String()
		}
		logWrite(id, timeEntryKind, entity, "create", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, entry)
	}
}

func handleUpdateTimeEntry(entries server.TimeEntryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		entryID, ok := pathKey(w, r, "id")
		if !ok {
			return
		}
		input, ok := decodePayload(w, r)
		if !ok {
			return
		}

		entry, err := entries.Update(r.Context(), id.UserKey, entryID, input, source(id))
		logWrite(id, timeEntryKind, entryID.String(), "update", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, entry)
	}
}

func handleDeleteTimeEntry(entries server.TimeEntryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		entryID, ok := pathKey(w, r, "id")
		if !ok {
			return
		}

		err := entries.Delete(r.Context(), id.UserKey, entryID)
		logWrite(id, timeEntryKind, entryID.String(), "delete", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTimeEntryHistory(entries server.TimeEntryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		entryID, ok := pathKey(w, r, "id")
		if !ok {
			return
		}

		versions, err := entries.History(r.Context(), id.UserKey, entryID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, versions)
	}
}
