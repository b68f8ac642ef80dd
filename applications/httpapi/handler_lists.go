package httpapi

import (
	"net/http"
	"strconv"

	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

type listPushRequest struct {
	namespaceOnly
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

func (h *Handler) lpush(w http.ResponseWriter, r *http.Request) {
	h.push(w, r, true)
}

func (h *Handler) rpush(w http.ResponseWriter, r *http.Request) {
	h.push(w, r, false)
}

func (h *Handler) push(w http.ResponseWriter, r *http.Request, left bool) {
	var req listPushRequest
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

	var length int
	if left {
		length, err = e.LPush(namespace, req.Key, req.Values...)
	} else {
		length, err = e.RPush(namespace, req.Key, req.Values...)
	}
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"length": length})
}

func (h *Handler) lpop(w http.ResponseWriter, r *http.Request) {
	h.pop(w, r, true)
}

func (h *Handler) rpop(w http.ResponseWriter, r *http.Request) {
	h.pop(w, r, false)
}

func (h *Handler) pop(w http.ResponseWriter, r *http.Request, left bool) {
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

	var value string
	var found bool
	if left {
		value, found, err = e.LPop(namespace, key)
	} else {
		value, found, err = e.RPop(namespace, key)
	}
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

type lrangeRequest struct {
	namespaceOnly
	Key   string `json:"key"`
	Start int    `json:"start"`
	Stop  int    `json:"stop"`
}

func (h *Handler) lrange(w http.ResponseWriter, r *http.Request) {
	var req lrangeRequest
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
	values, err := e.LRange(namespace, req.Key, req.Start, req.Stop)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"values": values})
}

func (h *Handler) llen(w http.ResponseWriter, r *http.Request) {
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
	length, err := e.LLen(namespace, key)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"length": length})
}

func parseIntQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
