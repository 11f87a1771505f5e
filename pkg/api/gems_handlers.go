package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gemyard/gemyard/pkg/gems"
	"github.com/gemyard/gemyard/pkg/httputil"
	"github.com/gemyard/gemyard/pkg/observability"
	"github.com/gemyard/gemyard/pkg/webhooks"
)

// GemsHandler exposes the gem catalog endpoints. Publishing a version kicks
// off the webhook fan-out for the gem.
type GemsHandler struct {
	catalog   gems.Store
	hookStore webhooks.Store
	deliverer *webhooks.Deliverer
}

// NewGemsHandler creates a handler for the catalog endpoints
func NewGemsHandler(catalog gems.Store, hookStore webhooks.Store, deliverer *webhooks.Deliverer) *GemsHandler {
	return &GemsHandler{
		catalog:   catalog,
		hookStore: hookStore,
		deliverer: deliverer,
	}
}

type createGemRequest struct {
	Name       string `json:"name"`
	Info       string `json:"info"`
	ProjectURI string `json:"project_uri"`
}

type publishVersionRequest struct {
	Number   string `json:"number"`
	Platform string `json:"platform"`
}

type gemResponse struct {
	gems.Gem
	LatestVersion *gems.Version `json:"latest_version,omitempty"`
}

// CreateGem handles POST /api/v1/gems
func (h *GemsHandler) CreateGem(w http.ResponseWriter, r *http.Request) {
	var req createGemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// "*" is reserved for global webhook targets.
	if req.Name == "" || req.Name == webhooks.GlobalPattern {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "invalid gem name")
		return
	}

	gem := &gems.Gem{Name: req.Name, Info: req.Info, ProjectURI: req.ProjectURI}
	if err := h.catalog.CreateGem(r.Context(), gem); err != nil {
		if errors.Is(err, gems.ErrGemExists) {
			httputil.WriteErrorMessage(w, http.StatusConflict, "gem already exists")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	observability.FromContext(r.Context()).WithField("gem", gem.Name).Info("gem created")
	httputil.WriteCreated(w, gem)
}

// GetGem handles GET /api/v1/gems/{name}
func (h *GemsHandler) GetGem(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	gem, err := h.catalog.GetGem(r.Context(), name)
	if err != nil {
		if errors.Is(err, gems.ErrNotFound) {
			httputil.WriteNotFoundError(w, "gem not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	resp := gemResponse{Gem: *gem}
	if latest, err := h.catalog.LatestVersion(r.Context(), gem.Name); err == nil {
		resp.LatestVersion = latest
	}
	httputil.WriteSuccess(w, resp)
}

// PublishVersion handles POST /api/v1/gems/{name}/versions
func (h *GemsHandler) PublishVersion(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req publishVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == "" {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "version number is required")
		return
	}
	if req.Platform == "" {
		req.Platform = "ruby"
	}

	gem, err := h.catalog.GetGem(r.Context(), name)
	if err != nil {
		if errors.Is(err, gems.ErrNotFound) {
			httputil.WriteNotFoundError(w, "gem not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	version := &gems.Version{GemName: gem.Name, Number: req.Number, Platform: req.Platform}
	if err := h.catalog.PublishVersion(r.Context(), version); err != nil {
		if errors.Is(err, gems.ErrVersionExists) {
			httputil.WriteErrorMessage(w, http.StatusConflict, "version already published")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"gem":     gem.Name,
		"version": version.Number,
	}).Info("version published")

	// Fire-and-forget: the publish response does not wait on deliveries,
	// and delivery outcomes never affect it. Detached from the request
	// context so client disconnects do not cancel the fan-out.
	go h.deliverer.NotifyPublished(context.Background(), h.hookStore, gem, version)

	httputil.WriteCreated(w, version)
}
