package httpapi

import (
	"net/http"

	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

func (h *Handler) hget(w http.ResponseWriter, r *http.Request) {
	namespace := namespaceParam(r, nil)
	key := r.URL.Query().Get("key")
	field := r.URL.Query().Get("field")
	if key == "" || field == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("key and field are required"))
		return
	}

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	value, found, err := e.HGet(namespace, key, field)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	if !found {
		writeServiceError(w, r, h.metrics, apperrors.KeyNotFound(key))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value})
}

type hsetRequest struct {
	namespaceOnly
	Key   string `json:"key"`
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) hset(w http.ResponseWriter, r *http.Request) {
	var req hsetRequest
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
	created, err := e.HSet(namespace, req.Key, req.Field, req.Value)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"created": created})
}

type hmsetRequest struct {
	namespaceOnly
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

func (h *Handler) hmset(w http.ResponseWriter, r *http.Request) {
	var req hmsetRequest
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
	if err := e.HMSet(namespace, req.Key, req.Fields); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"set": len(req.Fields)})
}

func (h *Handler) hgetall(w http.ResponseWriter, r *http.Request) {
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
	view, err := e.HGetAll(namespace, key)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fields": view})
}
