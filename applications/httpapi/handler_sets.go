package httpapi

import (
	"net/http"

	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

type setMembersRequest struct {
	namespaceOnly
	Key     string   `json:"key"`
	Members []string `json:"members"`
}

func (h *Handler) sadd(w http.ResponseWriter, r *http.Request) {
	var req setMembersRequest
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
	added, err := e.SAdd(namespace, req.Key, req.Members...)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (h *Handler) srem(w http.ResponseWriter, r *http.Request) {
	var req setMembersRequest
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
	removed, err := e.SRem(namespace, req.Key, req.Members...)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) smembers(w http.ResponseWriter, r *http.Request) {
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
	members, err := e.SMembers(namespace, key)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

func (h *Handler) sismember(w http.ResponseWriter, r *http.Request) {
	namespace := namespaceParam(r, nil)
	key := r.URL.Query().Get("key")
	member := r.URL.Query().Get("member")
	if key == "" || member == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("key and member are required"))
		return
	}

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	isMember, err := e.SIsMember(namespace, key, member)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isMember": isMember})
}

func (h *Handler) scard(w http.ResponseWriter, r *http.Request) {
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
	card, err := e.SCard(namespace, key)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cardinality": card})
}
