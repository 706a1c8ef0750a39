// Package httpapi exposes the field service over JSON/HTTP.
//
// Every response is an envelope:
//
//	{"success": true, "data": ...}
//	{"success": false, "error": {"message": "...", "key": "..."}}
//
// Authentication and product authorization happen in front of this handler.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jacentio/taskfields/field"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// API serves the field routes.
type API struct {
	service *field.Service
	logger  *slog.Logger
}

// New creates an API backed by service.
func New(service *field.Service, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{service: service, logger: logger}
}

// RegisterRoutes adds the API routes to mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Fields
	mux.HandleFunc("GET /products/{productId}/fields", a.handleListFields)
	mux.HandleFunc("POST /products/{productId}/fields", a.handleCreateField)
	mux.HandleFunc("GET /products/{productId}/fields/{id}", a.handleGetField)
	mux.HandleFunc("PUT /products/{productId}/fields/{id}", a.handleUpdateField)
	mux.HandleFunc("DELETE /products/{productId}/fields/{id}", a.handleDeleteField)

	// Task values
	mux.HandleFunc("GET /products/{productId}/tasks/{taskId}/fields", a.handleGetTaskValues)
	mux.HandleFunc("PUT /products/{productId}/tasks/{taskId}/fields", a.handleSetTaskValues)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		a.writeJSON(w, http.StatusOK, envelope{Success: true, Data: "ok"})
	})
}

// Handler returns a mux with the API routes wrapped in request logging.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return a.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("write response", "status", status, "error", err)
	}
}

func (a *API) writeData(w http.ResponseWriter, status int, data any) {
	a.writeJSON(w, status, envelope{Success: true, Data: data})
}

func (a *API) writeError(w http.ResponseWriter, status int, msg, key string) {
	a.writeJSON(w, status, envelope{Error: &errorBody{Message: msg, Key: key}})
}

// writeServiceError maps field errors to status codes. Anything unknown is
// logged and reported as 500 without details.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *field.ValidationError
	switch {
	case errors.As(err, &verr):
		a.writeError(w, http.StatusUnprocessableEntity, verr.Error(), verr.Key)
	case field.IsNotFound(err):
		a.writeError(w, http.StatusNotFound, "field not found", "")
	case field.IsConflict(err):
		a.writeError(w, http.StatusConflict, "field was modified concurrently, retry", "")
	default:
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		a.writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON", "")
		return false
	}
	return true
}

// Fields

func (a *API) handleListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := a.service.ListFieldsForProduct(r.Context(), r.PathValue("productId"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeData(w, http.StatusOK, fields)
}

func (a *API) handleCreateField(w http.ResponseWriter, r *http.Request) {
	var in field.CreateInput
	if !a.decode(w, r, &in) {
		return
	}

	f, err := a.service.CreateField(r.Context(), r.PathValue("productId"), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeData(w, http.StatusCreated, f)
}

func (a *API) handleGetField(w http.ResponseWriter, r *http.Request) {
	f, err := a.service.GetField(r.Context(), r.PathValue("productId"), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeData(w, http.StatusOK, f)
}

func (a *API) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	var p field.Patch
	if !a.decode(w, r, &p) {
		return
	}

	f, err := a.service.UpdateField(r.Context(), r.PathValue("productId"), r.PathValue("id"), p)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeData(w, http.StatusOK, f)
}

func (a *API) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteField(r.Context(), r.PathValue("productId"), r.PathValue("id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, envelope{Success: true})
}

// Task values

func (a *API) handleGetTaskValues(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	byTask, err := a.service.ListTaskValues(r.Context(), taskID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeData(w, http.StatusOK, byTask[taskID])
}

func (a *API) handleSetTaskValues(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields []field.TaskValueInput `json:"fields"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	values, err := a.service.SetTaskValues(r.Context(), r.PathValue("productId"), r.PathValue("taskId"), req.Fields)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeData(w, http.StatusOK, values)
}
