package httpapi

import (
	"net/http"

	"github.com/edgecache/edgecache/domain/cache"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

type zaddRequest struct {
	namespaceOnly
	Key     string          `json:"key"`
	Members []cache.ZMember `json:"members"`
}

func (h *Handler) zadd(w http.ResponseWriter, r *http.Request) {
	var req zaddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	namespace := namespaceParam(r, req)

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	added, err := e.ZAdd(namespace, req.Key, req.Members)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (h *Handler) zrange(w http.ResponseWriter, r *http.Request) {
	namespace := namespaceParam(r, nil)
	key := r.URL.Query().Get("key")
	if key == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("key is required"))
		return
	}
	start := parseIntQuery(r, "start", 0)
	stop := parseIntQuery(r, "stop", -1)

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	members, err := e.ZRange(namespace, key, start, stop)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

func (h *Handler) zcard(w http.ResponseWriter, r *http.Request) {
	namespace := namespaceParam(r, nil)
	key := r.URL.Query().Get("key")
	if key == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("key is required"))
		return
	}

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	card, err := e.ZCard(namespace, key)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cardinality": card})
}
