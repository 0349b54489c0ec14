package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// Allowed methods per resource, reported in the Allow header of OPTIONS
// and 405 responses.
var (
	collectionMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}
	itemMethods       = []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
)

// PolicyHandler serves the policy collection and item resources.
type PolicyHandler struct {
	service *policy.Service
	logger  *slog.Logger
}

// NewPolicyHandler creates a handler over service.
func NewPolicyHandler(service *policy.Service, logger *slog.Logger) *PolicyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyHandler{
		service: service,
		logger:  logger.With("component", "api.policies"),
	}
}

// Routes returns the router to mount at /policies. Paths match with or
// without a trailing slash.
func (h *PolicyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	r.NotFound(RouteNotFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	r.Get("/", h.List)
	r.Head("/", h.List)
	r.Post("/", h.Create)
	r.Options("/", h.CollectionOptions)

	r.Get("/{id}", h.Retrieve)
	r.Head("/{id}", h.Retrieve)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}", h.PartialUpdate)
	r.Delete("/{id}", h.Destroy)
	r.Options("/{id}", h.ItemOptions)

	return r
}

// List handles GET /policies/.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	views, err := h.service.List(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Create handles POST /policies/.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	draft, err := DecodeDraft(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	view, err := h.service.Create(r.Context(), draft)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/policies/"+strconv.FormatInt(view.ID, 10)+"/")
	writeJSON(w, http.StatusCreated, view)
}

// Retrieve handles GET /policies/{id}/.
func (h *PolicyHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	id, ok := policyID(r)
	if !ok {
		writeError(w, r, h.logger, policy.NewNotFoundError(0))
		return
	}

	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Update handles PUT /policies/{id}/. Every writable field is required.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PartialUpdate handles PATCH /policies/{id}/. Only supplied fields change.
func (h *PolicyHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *PolicyHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	id, ok := policyID(r)
	if !ok {
		writeError(w, r, h.logger, policy.NewNotFoundError(0))
		return
	}

	draft, err := DecodeDraft(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	view, err := h.service.Update(r.Context(), id, draft, partial)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Destroy handles DELETE /policies/{id}/.
func (h *PolicyHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := policyID(r)
	if !ok {
		writeError(w, r, h.logger, policy.NewNotFoundError(0))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PolicyHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	allowed := itemMethods
	if rctx := chi.RouteContext(r.Context()); rctx == nil || rctx.RoutePath == "" || rctx.RoutePath == "/" {
		allowed = collectionMethods
	}
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Detail: "Method \"" + r.Method + "\" not allowed.",
	})
}

// RouteNotFound answers requests for paths outside the API.
func RouteNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: DetailRouteNotFound})
}

// policyID parses the {id} path parameter. Anything that is not a base-10
// integer cannot name a policy.
func policyID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
