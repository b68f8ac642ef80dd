package httpapi

import "net/http"

func (h *Handler) keys(w http.ResponseWriter, r *http.Request) {
	namespace := namespaceParam(r, nil)
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	keys, err := e.Keys(namespace, pattern)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	namespace := namespaceParam(r, nil)

	e, err := h.resolveEngine(r, namespace)
	if err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	e.FlushDb(namespace)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
