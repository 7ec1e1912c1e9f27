package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type StreamHandler struct {
	syncService service.SyncService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewStreamHandler(syncService service.SyncService, v *validator.Validate, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{syncService: syncService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 stream trigger routes
func (h *StreamHandler) RegisterRoutes(mux *http.ServeMux, triggerMw func(http.Handler) http.Handler) {
	mux.Handle("/streams/up", triggerMw(http.HandlerFunc(h.streamUp)))
	mux.Handle("/streams/down", triggerMw(http.HandlerFunc(h.streamDown)))
}

// streamUp godoc
// @Summary Trigger a stream-up sync
// @Tags streams
// @Accept json
// @Produce json
// @Param request body dto.StreamTriggerRequest true "Trigger payload"
// @Success 200 {object} dto.StreamTriggerResponse
// @Router /streams/up [post]
func (h *StreamHandler) streamUp(w http.ResponseWriter, r *http.Request) {
	h.handleTrigger(w, r, h.syncService.StreamUp)
}

// streamDown godoc
// @Summary Trigger a stream-down sync
// @Tags streams
// @Accept json
// @Produce json
// @Param request body dto.StreamTriggerRequest true "Trigger payload"
// @Success 200 {object} dto.StreamTriggerResponse
// @Router /streams/down [post]
func (h *StreamHandler) streamDown(w http.ResponseWriter, r *http.Request) {
	h.handleTrigger(w, r, h.syncService.StreamDown)
}

func (h *StreamHandler) handleTrigger(w http.ResponseWriter, r *http.Request, sync func(ctx context.Context, userID string, kind model.AssetKind) model.SyncResult) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dto.StreamTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	kinds := make([]model.AssetKind, 0, len(req.AssetKinds))
	for _, k := range req.AssetKinds {
		kinds = append(kinds, model.AssetKind(k))
	}
	if len(kinds) == 0 {
		kinds = model.AllAssetKinds()
	}

	// Each kind syncs independently; one failure never aborts the rest.
	resp := dto.StreamTriggerResponse{UserID: req.UserID}
	for _, kind := range kinds {
		res := sync(r.Context(), req.UserID, kind)
		h.logger.Info().
			Str("user_id", req.UserID).
			Str("kind", string(res.Kind)).
			Str("status", string(res.Status)).
			Msg(res.Detail)
		resp.Results = append(resp.Results, dto.SyncResultDTO{
			Kind:   string(res.Kind),
			Status: string(res.Status),
			Detail: res.Detail,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
