package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/rs/zerolog"
)

type DLQHandler struct {
	dlqService service.DLQService
	logger     zerolog.Logger
}

func NewDLQHandler(dlqService service.DLQService, logger zerolog.Logger) *DLQHandler {
	return &DLQHandler{dlqService: dlqService, logger: logger}
}

// RegisterRoutes mounts the Pub/Sub push endpoint for dead-lettered
// sync jobs.
func (h *DLQHandler) RegisterRoutes(mux *http.ServeMux, pubsubAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/dlq", pubsubAuthMw(http.HandlerFunc(h.receive)))
}

func (h *DLQHandler) receive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode Pub/Sub push request")
		// A malformed message can never succeed; ack it so Pub/Sub
		// stops redelivering.
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.dlqService.ProcessAndSave(r.Context(), &req); err != nil {
		h.logger.Error().Err(err).Str("message_id", req.Message.MessageID).Msg("Failed to persist dead-lettered sync job")
		// Non-2xx makes Pub/Sub retry the delivery.
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	h.logger.Info().Str("message_id", req.Message.MessageID).Msg("Dead-lettered sync job persisted")
	w.WriteHeader(http.StatusOK)
}
