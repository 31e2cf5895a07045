package http

import (
	"context"
	"log/slog"
	"net/http"
)

// StoragePinger verifies the durable store is reachable.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	storage   StoragePinger
	responder responder
}

// NewHealthHandler wires the health endpoint. A nil pinger reports healthy
// on process liveness alone.
func NewHealthHandler(storage StoragePinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{storage: storage, responder: newResponder(logger)}
}

// Check responds 200 when the process and its storage are healthy.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{
				Status:  "degraded",
				Storage: "unreachable",
			})
			return
		}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok", Storage: "ok"})
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
