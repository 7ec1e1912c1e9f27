package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type SettingsHandler struct {
	settingsService service.SettingsService
	validate        *validator.Validate
	logger          zerolog.Logger
}

func NewSettingsHandler(settingsService service.SettingsService, v *validator.Validate, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 settings routes
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/settings/", authMw(http.HandlerFunc(h.handleSettings)))
}

// Routes:
//
//	GET  /settings/{kind}
//	PUT  /settings/{kind}
//	POST /settings/{kind}/enable
//	POST /settings/{kind}/disable
func (h *SettingsHandler) handleSettings(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/settings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	kind := model.AssetKind(parts[0])
	if !kind.IsValid() {
		http.Error(w, "Unknown asset kind: "+parts[0], http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		h.getSettings(w, r, kind)
	case r.Method == http.MethodPut && len(parts) == 1:
		h.updateSettings(w, r, kind)
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "enable":
		h.setEnabled(w, r, kind, true)
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "disable":
		h.setEnabled(w, r, kind, false)
	default:
		http.NotFound(w, r)
	}
}

// getSettings godoc
// @Summary Get asset settings for one kind
// @Tags settings
// @Produce json
// @Param kind path string true "Asset kind" Enums(banner, profileImage, name)
// @Success 200 {object} dto.SettingsResponseDTO
// @Security BearerAuth
// @Router /settings/{kind} [get]
func (h *SettingsHandler) getSettings(w http.ResponseWriter, r *http.Request, kind model.AssetKind) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	settings, err := h.settingsService.Get(r.Context(), userID, kind)
	if err != nil {
		if errors.Is(err, service.ErrSettingsNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeSettings(w, http.StatusOK, settings)
}

// updateSettings godoc
// @Summary Replace the template configuration for one asset kind
// @Tags settings
// @Accept json
// @Produce json
// @Param kind path string true "Asset kind" Enums(banner, profileImage, name)
// @Param request body dto.SettingsUpdateRequest true "Template configuration"
// @Success 200 {object} dto.SettingsResponseDTO
// @Security BearerAuth
// @Router /settings/{kind} [put]
func (h *SettingsHandler) updateSettings(w http.ResponseWriter, r *http.Request, kind model.AssetKind) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.SettingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	props, err := json.Marshal(req.TemplateProps)
	if err != nil {
		http.Error(w, "Invalid template props: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.settingsService.Update(r.Context(), &model.AssetSettings{
		UserID:        userID,
		Kind:          kind,
		TemplateID:    req.TemplateID,
		TemplateProps: props,
	})
	if err != nil {
		http.Error(w, "Failed to update settings: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeSettings(w, http.StatusOK, updated)
}

// setEnabled godoc
// @Summary Enable or disable asset sync for one kind
// @Tags settings
// @Param kind path string true "Asset kind" Enums(banner, profileImage, name)
// @Success 204
// @Security BearerAuth
// @Router /settings/{kind}/enable [post]
func (h *SettingsHandler) setEnabled(w http.ResponseWriter, r *http.Request, kind model.AssetKind, enabled bool) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var err error
	if enabled {
		err = h.settingsService.Enable(r.Context(), userID, kind)
	} else {
		err = h.settingsService.Disable(r.Context(), userID, kind)
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSettingsNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, service.ErrAccountNotLinked):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SettingsHandler) writeSettings(w http.ResponseWriter, status int, settings *model.AssetSettings) {
	resp := dto.SettingsResponseDTO{
		UserID:        settings.UserID,
		Kind:          string(settings.Kind),
		Enabled:       settings.Enabled,
		TemplateID:    settings.TemplateID,
		TemplateProps: settings.TemplateProps,
		CreatedAt:     settings.CreatedAt,
		UpdatedAt:     settings.UpdatedAt,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
