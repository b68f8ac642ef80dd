package httpapi

import (
	"net/http"

	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

type publishRequest struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	if req.Channel == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("channel is required"))
		return
	}
	delivered := h.broker.Publish(req.Channel, req.Message)
	if h.metrics != nil {
		h.metrics.RecordPubSubPublish(delivered > 0)
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

func (h *Handler) pubsubChannels(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": h.broker.Channels(pattern)})
}

type numSubRequest struct {
	Channels []string `json:"channels"`
}

func (h *Handler) pubsubNumSub(w http.ResponseWriter, r *http.Request) {
	var req numSubRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"counts": h.broker.NumSub(req.Channels...)})
}

func (h *Handler) pubsubNumPat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"patterns": h.broker.NumPat()})
}
