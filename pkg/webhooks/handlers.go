package webhooks

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gemyard/gemyard/pkg/httputil"
	"github.com/gemyard/gemyard/pkg/middleware"
	"github.com/gemyard/gemyard/pkg/observability"
)

const gemNotFoundMessage = "This gem could not be found."

// Handler exposes the webhook registry over HTTP. All routes require an
// authenticated user in the request context.
type Handler struct {
	registry  *Registry
	resolver  *Resolver
	deliverer *Deliverer
	logger    *observability.Logger
}

// NewHandler creates an HTTP handler for the webhook endpoints
func NewHandler(registry *Registry, resolver *Resolver, deliverer *Deliverer, logger *observability.Logger) *Handler {
	return &Handler{
		registry:  registry,
		resolver:  resolver,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Register mounts the webhook routes on router
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/web_hooks", h.Create).Methods(http.MethodPost)
	router.HandleFunc("/web_hooks", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/web_hooks/remove", h.Remove).Methods(http.MethodDelete)
	router.HandleFunc("/web_hooks/fire", h.Fire).Methods(http.MethodPost)
}

type hookResponse struct {
	ID        int64     `json:"id"`
	GemName   string    `json:"gem_name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func hookToResponse(hook *Hook) hookResponse {
	return hookResponse{
		ID:        hook.ID,
		GemName:   hook.Target.Display(),
		URL:       hook.URL,
		CreatedAt: hook.CreatedAt,
	}
}

// hookParams pulls gem_name and url out of the request form. Both are
// required on every mutating endpoint.
func hookParams(r *http.Request) (gemName, url string, ok bool) {
	gemName = r.FormValue("gem_name")
	url = r.FormValue("url")
	return gemName, url, gemName != "" && url != ""
}

// Create registers a hook for the resolved target
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	gemName, hookURL, ok := hookParams(r)
	if !ok {
		httputil.WriteText(w, http.StatusBadRequest, "Both gem_name and url are required.")
		return
	}

	target, err := h.resolver.Resolve(r.Context(), gemName)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	_, err = h.registry.Create(r.Context(), user.ID, target, hookURL)
	switch {
	case errors.Is(err, ErrInvalidURL):
		httputil.WriteText(w, http.StatusBadRequest, "Invalid URL: %s", hookURL)
	case errors.Is(err, ErrConflict):
		httputil.WriteText(w, http.StatusConflict, "%s has already been registered for %s", hookURL, target.Display())
	case err != nil:
		httputil.WriteInternalError(w, err)
	default:
		httputil.WriteText(w, http.StatusCreated, "Successfully created webhook for %s to %s", target.Display(), hookURL)
	}
}

// Index lists the caller's hooks in creation order
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	hooks, err := h.registry.List(r.Context(), user.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	responses := make([]hookResponse, 0, len(hooks))
	for _, hook := range hooks {
		responses = append(responses, hookToResponse(hook))
	}
	httputil.WriteSuccess(w, responses)
}

// Remove deletes the caller's hook matching (target, url)
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	gemName, hookURL, ok := hookParams(r)
	if !ok {
		httputil.WriteText(w, http.StatusBadRequest, "Both gem_name and url are required.")
		return
	}

	target, err := h.resolver.Resolve(r.Context(), gemName)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	_, err = h.registry.Remove(r.Context(), user.ID, target, hookURL)
	switch {
	case errors.Is(err, ErrHookNotFound):
		httputil.WriteText(w, http.StatusNotFound, "No such webhook exists under your account.")
	case err != nil:
		httputil.WriteInternalError(w, err)
	default:
		httputil.WriteText(w, http.StatusOK, "Successfully removed webhook for %s to %s", target.Display(), hookURL)
	}
}

// Fire performs a one-shot test delivery against url without touching
// the caller's registered hooks
func (h *Handler) Fire(w http.ResponseWriter, r *http.Request) {
	gemName, hookURL, ok := hookParams(r)
	if !ok {
		httputil.WriteText(w, http.StatusBadRequest, "Both gem_name and url are required.")
		return
	}

	target, err := h.resolver.Resolve(r.Context(), gemName)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	if err := ValidateURL(hookURL); err != nil {
		httputil.WriteText(w, http.StatusBadRequest, "Invalid URL: %s", hookURL)
		return
	}

	if err := h.deliverer.TestFire(r.Context(), target, hookURL); err != nil {
		httputil.WriteText(w, http.StatusBadRequest, "There was a problem deploying webhook for %s to %s", target.Display(), hookURL)
		return
	}
	httputil.WriteText(w, http.StatusOK, "Successfully deployed webhook for %s to %s", target.Display(), hookURL)
}

func (h *Handler) writeResolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrTargetNotFound) {
		httputil.WriteText(w, http.StatusNotFound, gemNotFoundMessage)
		return
	}
	httputil.WriteInternalError(w, err)
}
