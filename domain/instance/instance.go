// Package instance implements the Instance Router: given a namespace, it
// resolves the engine variant (shared default, per-instance owned, or
// TEE-wrapped) that should serve it, memoizing the resolution so repeated
// lookups for the same namespace are O(1) after the first.
package instance

import (
	"context"
	"sync"

	"github.com/edgecache/edgecache/domain/engine"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

// Variant tags which engine flavor an instance handle resolves to.
type Variant int

const (
	VariantShared Variant = iota
	VariantOwned
	VariantTEE
)

// Handle is an externally provided record linking a namespace to a specific
// engine variant. It is read-only to the router and the engines it
// dispatches to.
type Handle struct {
	InstanceID string
	Namespace  string
	OwnerAddress string
	Variant    Variant
}

// CacheEngine is the narrow surface the router needs from whatever backs a
// namespace -- satisfied by *engine.Engine directly, and by the TEE
// decorator when one is interposed.
type CacheEngine interface {
	Get(namespace, key string) (string, bool, error)
	Set(namespace, key, value string, opts engine.SetOptions) (bool, error)
}

// Provisioner is the external collaborator the router consults to resolve
// and authorize instances; it is intentionally the only bridge to the
// billing/provisioning systems this core treats as out of scope.
type Provisioner interface {
	// ResolveInstance looks up the provisioning record for namespace, if
	// any. A nil handle with no error means the namespace falls back to
	// the shared default engine.
	ResolveInstance(ctx context.Context, namespace string) (*Handle, error)
	// AuthorizeSubscription reports whether namespace's billing plan
	// currently entitles it to serve requests.
	AuthorizeSubscription(ctx context.Context, namespace string) (Authorization, error)
}

// Authorization is the billing collaborator's verdict.
type Authorization int

const (
	Authorized Authorization = iota
	PaymentRequired
)

// StaticProvisioner is a Provisioner backed by an in-memory map, useful as
// a default collaborator when no external provisioning system is wired in:
// a namespace resolves to the handle registered for it (nil when none is),
// and subscriptions are authorized except as AuthorizeSubscription notes.
type StaticProvisioner struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewStaticProvisioner returns a provisioner with no pre-registered
// instances.
func NewStaticProvisioner() *StaticProvisioner {
	return &StaticProvisioner{handles: make(map[string]*Handle)}
}

// Register records a handle for a namespace, as would happen when
// POST /cache/instances provisions one.
func (p *StaticProvisioner) Register(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles[h.Namespace] = h
}

// Deregister removes a namespace's handle.
func (p *StaticProvisioner) Deregister(namespace string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handles, namespace)
}

// Get returns the handle registered for namespace, if any.
func (p *StaticProvisioner) Get(namespace string) (*Handle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handles[namespace]
	return h, ok
}

// List returns every currently-registered handle.
func (p *StaticProvisioner) List() []*Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Handle, 0, len(p.handles))
	for _, h := range p.handles {
		out = append(out, h)
	}
	return out
}

// ResolveInstance implements Provisioner.
func (p *StaticProvisioner) ResolveInstance(_ context.Context, namespace string) (*Handle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handles[namespace], nil
}

// AuthorizeSubscription implements Provisioner: everything is authorized
// except a namespace registered as an owned instance whose OwnerAddress is
// the "__unpaid__" marker, which gets PaymentRequired.
func (p *StaticProvisioner) AuthorizeSubscription(_ context.Context, namespace string) (Authorization, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if h, ok := p.handles[namespace]; ok && h.Variant == VariantOwned && h.OwnerAddress == "__unpaid__" {
		return PaymentRequired, nil
	}
	return Authorized, nil
}

// Router maps namespaces to the engine that should serve them and
// memoizes that mapping so engines are constructed once per namespace.
type Router struct {
	mu          sync.RWMutex
	provisioner Provisioner
	shared      CacheEngine
	owned       map[string]CacheEngine // namespace -> dedicated engine
	teeFactory  func(CacheEngine) CacheEngine
	resolved    map[string]CacheEngine // memoized namespace -> resolution
}

// NewRouter constructs a router backed by the shared default engine and a
// provisioner collaborator. teeFactory wraps an owned engine in the TEE
// decorator when a handle calls for it; it may be nil if TEE wrapping is
// never exercised.
func NewRouter(shared CacheEngine, provisioner Provisioner, teeFactory func(CacheEngine) CacheEngine) *Router {
	if provisioner == nil {
		provisioner = NewStaticProvisioner()
	}
	return &Router{
		provisioner: provisioner,
		shared:      shared,
		owned:       make(map[string]CacheEngine),
		teeFactory:  teeFactory,
		resolved:    make(map[string]CacheEngine),
	}
}

// RegisterOwned wires a dedicated engine for namespace, used when a handle
// resolves to VariantOwned or VariantTEE.
func (r *Router) RegisterOwned(namespace string, e CacheEngine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owned[namespace] = e
	delete(r.resolved, namespace) // force re-resolution
}

// Resolve returns the engine that should serve namespace, consulting the
// provisioner collaborator on first lookup and memoizing the result.
func (r *Router) Resolve(ctx context.Context, namespace string) (CacheEngine, error) {
	r.mu.RLock()
	if e, ok := r.resolved[namespace]; ok {
		r.mu.RUnlock()
		return e, nil
	}
	r.mu.RUnlock()

	handle, err := r.provisioner.ResolveInstance(ctx, namespace)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.resolved[namespace]; ok {
		return e, nil
	}

	var engine CacheEngine
	switch {
	case handle == nil:
		engine = r.shared
	case handle.Variant == VariantTEE:
		owned, ok := r.owned[namespace]
		if !ok {
			owned = r.shared
		}
		if r.teeFactory != nil {
			engine = r.teeFactory(owned)
		} else {
			engine = owned
		}
	case handle.Variant == VariantOwned:
		if owned, ok := r.owned[namespace]; ok {
			engine = owned
		} else {
			engine = r.shared
		}
	default:
		engine = r.shared
	}

	r.resolved[namespace] = engine
	return engine, nil
}

// AuthorizeSubscription checks the billing collaborator for namespace,
// translating its verdict into a typed error for non-authorized cases.
func (r *Router) AuthorizeSubscription(ctx context.Context, namespace string) error {
	auth, err := r.provisioner.AuthorizeSubscription(ctx, namespace)
	if err != nil {
		return err
	}
	if auth == PaymentRequired {
		return apperrors.New(apperrors.ErrCodeInsufficientFunds, "subscription payment required", 402)
	}
	return nil
}
