package httpapi

import (
	"net/http"

	"github.com/edgecache/edgecache/domain/engine"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

type setRequest struct {
	namespaceOnly
	Key     string `json:"key"`
	Value   string `json:"value"`
	NX      bool   `json:"nx"`
	XX      bool   `json:"xx"`
	TTL     int64  `json:"ttl"`
	HasTTL  bool   `json:"hasTtl"`
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	namespace := namespaceParam(r, req)
	if req.Key == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("key is required"))
		return
	}

	e, err := h.resolveNarrowEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}

	opts := engine.SetOptions{NX: req.NX, XX: req.XX, HasTTL: req.HasTTL, TTL: req.TTL}
	ok, err := e.Set(namespace, req.Key, req.Value, opts)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"set": ok})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	namespace := namespaceParam(r, nil)
	key := r.URL.Query().Get("key")
	if key == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("key is required"))
		return
	}

	e, err := h.resolveNarrowEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}

	value, found, err := e.Get(namespace, key)
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

type keysRequest struct {
	namespaceOnly
	Keys []string `json:"keys"`
}

func (h *Handler) del(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
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
	deleted := e.Del(namespace, req.Keys...)
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *Handler) mget(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	namespace := namespaceParam(r, req)

	e, err := h.resolveNarrowEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}

	values := make(map[string]*string, len(req.Keys))
	for _, key := range req.Keys {
		value, found, err := e.Get(namespace, key)
		if err != nil {
			writeServiceError(w, r, h.metrics, err)
			return
		}
		if found {
			v := value
			values[key] = &v
		} else {
			values[key] = nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"values": values})
}

type msetRequest struct {
	namespaceOnly
	Items map[string]string `json:"items"`
}

func (h *Handler) mset(w http.ResponseWriter, r *http.Request) {
	var req msetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	namespace := namespaceParam(r, req)

	e, err := h.resolveNarrowEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}

	for key, value := range req.Items {
		if _, err := e.Set(namespace, key, value, engine.SetOptions{}); err != nil {
			writeServiceError(w, r, h.metrics, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"set": len(req.Items)})
}

type incrRequest struct {
	namespaceOnly
	Key string `json:"key"`
	By  int64  `json:"by"`
}

func (h *Handler) incr(w http.ResponseWriter, r *http.Request) {
	h.incrDecr(w, r, 1)
}

func (h *Handler) decr(w http.ResponseWriter, r *http.Request) {
	h.incrDecr(w, r, -1)
}

func (h *Handler) incrDecr(w http.ResponseWriter, r *http.Request, sign int64) {
	var req incrRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	namespace := namespaceParam(r, req)
	by := req.By
	if by == 0 {
		by = 1
	}

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}

	var result int64
	if sign > 0 {
		result, err = e.Incr(namespace, req.Key, by)
	} else {
		result, err = e.Decr(namespace, req.Key, by)
	}
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"value": result})
}

func (h *Handler) ttl(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, map[string]int64{"ttl": e.TTL(namespace, key)})
}

type expireRequest struct {
	namespaceOnly
	Key        string `json:"key"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	var req expireRequest
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

	ok, err := e.Expire(namespace, req.Key, req.TTLSeconds)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"expired": ok})
}
