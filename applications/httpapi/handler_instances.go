package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/edgecache/edgecache/domain/instance"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
	"github.com/edgecache/edgecache/infrastructure/middleware"
)

// instanceAdmin is the richer surface StaticProvisioner exposes beyond the
// narrow instance.Provisioner interface, needed for the /cache/instances
// administrative endpoints. With a Provisioner collaborator that doesn't
// implement it, provisioning and per-instance GET/DELETE return 501 and
// listing returns an empty list.
type instanceAdmin interface {
	Get(namespace string) (*instance.Handle, bool)
	List() []*instance.Handle
	Register(h *instance.Handle)
	Deregister(namespace string)
}

var plans = []map[string]string{
	{"id": "shared", "description": "Default multi-tenant engine, no dedicated memory budget"},
	{"id": "owned", "description": "Dedicated engine instance with its own memory budget"},
	{"id": "tee", "description": "Dedicated engine wrapped in TEE-simulated encryption at rest"},
}

func (h *Handler) plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

func (h *Handler) admin() (instanceAdmin, bool) {
	admin, ok := h.provisioner.(instanceAdmin)
	return admin, ok
}

type createInstanceRequest struct {
	Namespace    string `json:"namespace"`
	Variant      string `json:"variant"`
	OwnerAddress string `json:"ownerAddress"`
}

func variantFromString(s string) (instance.Variant, bool) {
	switch strings.ToLower(s) {
	case "", "shared":
		return instance.VariantShared, true
	case "owned":
		return instance.VariantOwned, true
	case "tee":
		return instance.VariantTEE, true
	default:
		return 0, false
	}
}

func (h *Handler) createInstance(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin()
	if !ok {
		writeServiceError(w, r, h.metrics, apperrors.New(apperrors.ErrCodeInternal, "instance provisioning not supported by the configured collaborator", http.StatusNotImplemented))
		return
	}

	var req createInstanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.metrics, err)
		return
	}
	if req.Namespace == "" {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("namespace is required"))
		return
	}
	variant, ok := variantFromString(req.Variant)
	if !ok {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("unrecognized variant: "+req.Variant))
		return
	}

	handle := &instance.Handle{
		InstanceID:   uuid.NewString(),
		Namespace:    req.Namespace,
		OwnerAddress: req.OwnerAddress,
		Variant:      variant,
	}
	admin.Register(handle)
	writeJSON(w, http.StatusCreated, handle)
}

// instances dispatches GET (list) and POST (provision) on the shared
// /cache/instances pattern, since net/http.ServeMux rejects a second
// registration of the same pattern.
func (h *Handler) instances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createInstance(w, r)
	case http.MethodGet:
		admin, ok := h.admin()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{"instances": []*instance.Handle{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"instances": admin.List()})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) instanceResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/cache/instances/")
	id = strings.Trim(id, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !middleware.IsValidUUID(id) {
		writeServiceError(w, r, h.metrics, apperrors.InvalidOperation("instance id is not a valid UUID"))
		return
	}

	admin, ok := h.admin()
	if !ok {
		writeServiceError(w, r, h.metrics, apperrors.New(apperrors.ErrCodeInternal, "instance provisioning not supported by the configured collaborator", http.StatusNotImplemented))
		return
	}

	var found *instance.Handle
	for _, handle := range admin.List() {
		if handle.InstanceID == id {
			found = handle
			break
		}
	}
	if found == nil {
		writeServiceError(w, r, h.metrics, apperrors.InstanceNotFound(id))
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, found)
	case http.MethodDelete:
		if !h.requireOwner(w, r, found.OwnerAddress) {
			return
		}
		admin.Deregister(found.Namespace)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}
