package health

import (
	"context"
	"net/http"
	"time"

	"github.com/driroane/llamachat/pkg/utils"
)

// probeTimeout caps how long the liveness check may spend reaching the
// backend; liveness itself never blocks on it.
const probeTimeout = 2 * time.Second

// Prober checks inference backend reachability.
type Prober interface {
	Ping(ctx context.Context) error
}

// Handler answers liveness checks, with a bounded best-effort probe of
// the inference backend.
type Handler struct {
	prober Prober
}

func New(prober Prober) *Handler {
	return &Handler{prober: prober}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	payload := map[string]string{"status": "ok"}

	if h.prober != nil {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		if err := h.prober.Ping(ctx); err != nil {
			payload["backend"] = "unreachable"
		} else {
			payload["backend"] = "ok"
		}
	}

	utils.RespondJSON(w, http.StatusOK, payload)
}
