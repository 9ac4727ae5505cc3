package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
	"github.com/mlfoundry/metastore/pkg/auth"
)

// Engine verifies permissions and dehydrates response models. It builds
// and returns new object graphs and mutates no shared state, so an
// abandoned traversal leaves nothing behind.
type Engine struct {
	authorizer Authorizer
	enabled    atomic.Bool
	logger     *slog.Logger

	deniedHooks []func(Resource)
}

// NewEngine creates an Engine with the given oracle and config. The
// config's Enabled flag seeds the runtime toggle; SetEnabled may flip it
// later (config hot-reload).
func NewEngine(authorizer Authorizer, cfg *Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{authorizer: authorizer, logger: logger}
	e.enabled.Store(cfg.Enabled)
	return e
}

// Enabled reports whether RBAC is currently enabled.
func (e *Engine) Enabled() bool { return e.enabled.Load() }

// SetEnabled flips the RBAC toggle at runtime.
func (e *Engine) SetEnabled(enabled bool) { e.enabled.Store(enabled) }

// OnDenied registers a hook invoked whenever a resource is denied (either
// verified at the top level or redacted as a sub-resource). Hook failures
// are contained: a panicking hook is logged and never propagates into the
// request. Register hooks before serving traffic.
func (e *Engine) OnDenied(hook func(Resource)) {
	e.deniedHooks = append(e.deniedHooks, hook)
}

func (e *Engine) notifyDenied(r Resource) {
	for _, hook := range e.deniedHooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("denied-hook panicked", "resource", r.String(), "panic", p)
				}
			}()
			hook(r)
		}()
	}
}

// Verify checks that the caller may perform action on the resource.
// Returns an error wrapping ErrPermissionDenied if not.
func (e *Engine) Verify(ctx context.Context, resource Resource, action Action) error {
	if !e.Enabled() {
		return nil
	}

	ac := auth.MustFromContext(ctx)
	verdicts, err := e.authorizer.CheckPermissions(ctx, ac.User, []Resource{resource}, action)
	if err != nil {
		return fmt.Errorf("permission check for %q: %w", resource, err)
	}

	allowed, ok := verdicts[resource]
	if !ok {
		// The oracle must answer for every requested resource; a missing
		// verdict is an oracle bug, not a denial.
		return fmt.Errorf("no verdict for resource %q", resource)
	}
	if !allowed {
		e.notifyDenied(resource)
		return deniedError(action, resource)
	}
	return nil
}

// VerifyModel checks that the caller may perform action on the model.
// The model owner always has permission, and models without a resource
// type require none.
func (e *Engine) VerifyModel(ctx context.Context, m apimodels.ResponseModel, action Action) error {
	if !e.Enabled() {
		return nil
	}
	if isOwnedByCaller(ctx, m) {
		return nil
	}
	resource, ok := ResourceForModel(m)
	if !ok {
		return nil
	}
	return e.Verify(ctx, resource, action)
}

// VerifyRead verifies read permission on the model itself and returns its
// dehydrated form. Lacking read permission on the top-level model is an
// error; denied sub-resources are redacted silently.
func (e *Engine) VerifyRead(ctx context.Context, m apimodels.ResponseModel) (apimodels.ResponseModel, error) {
	if !e.Enabled() {
		return m, nil
	}
	if err := e.VerifyModel(ctx, m, ActionRead); err != nil {
		return nil, err
	}
	return e.dehydrate(ctx, m, nil)
}

// Dehydrate rewrites the model so that every sub-resource the caller may
// not read is replaced by a redacted stand-in. prefetched verdicts are
// consulted first; resources absent from the map are checked individually.
func (e *Engine) Dehydrate(ctx context.Context, m apimodels.ResponseModel, prefetched map[Resource]bool) (apimodels.ResponseModel, error) {
	if !e.Enabled() {
		return m, nil
	}
	return e.dehydrate(ctx, m, prefetched)
}

func (e *Engine) dehydrate(ctx context.Context, m apimodels.ResponseModel, prefetched map[Resource]bool) (apimodels.ResponseModel, error) {
	var walkErr error

	out := m.MapSubmodels(func(sub apimodels.ResponseModel) apimodels.ResponseModel {
		if walkErr != nil {
			return sub
		}

		allowed, err := e.subresourceAllowed(ctx, sub, prefetched)
		if err != nil {
			walkErr = err
			return sub
		}
		if !allowed {
			if resource, ok := ResourceForModel(sub); ok {
				e.notifyDenied(resource)
			}
			return sub.Redacted(true, true)
		}

		dehydrated, err := e.dehydrate(ctx, sub, prefetched)
		if err != nil {
			walkErr = err
			return sub
		}
		return dehydrated
	})

	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// subresourceAllowed decides whether a sub-resource stays in the response.
// Owned and unmapped models always stay; everything else is answered from
// the prefetched verdicts or, when absent there, by an individual check.
func (e *Engine) subresourceAllowed(ctx context.Context, m apimodels.ResponseModel, prefetched map[Resource]bool) (bool, error) {
	if isOwnedByCaller(ctx, m) {
		return true, nil
	}
	resource, ok := ResourceForModel(m)
	if !ok {
		return true, nil
	}
	if allowed, ok := prefetched[resource]; ok {
		return allowed, nil
	}

	ac := auth.MustFromContext(ctx)
	verdicts, err := e.authorizer.CheckPermissions(ctx, ac.User, []Resource{resource}, ActionRead)
	if err != nil {
		return false, fmt.Errorf("permission check for %q: %w", resource, err)
	}
	return verdicts[resource], nil
}

// Subresources collects every sub-resource of the model that needs a
// permission check. Sub-resources owned by the caller are excluded; their
// permission would never be consulted. The traversal performs no oracle
// calls.
func (e *Engine) Subresources(ctx context.Context, m apimodels.ResponseModel) mapset.Set[Resource] {
	resources := mapset.NewSet[Resource]()
	collectSubresources(ctx, m, resources)
	return resources
}

func collectSubresources(ctx context.Context, m apimodels.ResponseModel, resources mapset.Set[Resource]) {
	for _, sub := range m.Submodels() {
		if !isOwnedByCaller(ctx, sub) {
			if resource, ok := ResourceForModel(sub); ok {
				resources.Add(resource)
			}
		}
		collectSubresources(ctx, sub, resources)
	}
}

// DehydratePage dehydrates every item of a page with a single batched
// oracle query for the union of all items' sub-resources. The items
// themselves are assumed already authorized (the list query was scoped).
func DehydratePage[M apimodels.ResponseModel](ctx context.Context, e *Engine, page apimodels.Page[M]) (apimodels.Page[M], error) {
	if !e.Enabled() {
		return page, nil
	}

	ac := auth.MustFromContext(ctx)

	union := mapset.NewSet[Resource]()
	for _, item := range page.Items {
		union = union.Union(e.Subresources(ctx, item))
	}

	var prefetched map[Resource]bool
	if union.Cardinality() > 0 {
		verdicts, err := e.authorizer.CheckPermissions(ctx, ac.User, union.ToSlice(), ActionRead)
		if err != nil {
			return page, fmt.Errorf("batched permission check: %w", err)
		}
		prefetched = verdicts
	}

	items := make([]M, 0, len(page.Items))
	for _, item := range page.Items {
		dehydrated, err := e.dehydrate(ctx, item, prefetched)
		if err != nil {
			return page, err
		}
		items = append(items, dehydrated.(M))
	}

	return page.WithItems(items), nil
}

// AllowedResourceIDs returns the instance IDs of a resource type the
// caller may act on, for scoping list queries. full=true means the list
// query needs no ID restriction.
func (e *Engine) AllowedResourceIDs(ctx context.Context, rt ResourceType, action Action) (full bool, ids []uuid.UUID, err error) {
	if !e.Enabled() {
		return true, nil, nil
	}
	ac := auth.MustFromContext(ctx)
	return e.authorizer.ListAllowedResourceIDs(ctx, ac.User, rt, action)
}

// isOwnedByCaller reports whether the calling user owns the model. Being
// invoked outside an authenticated request is a wiring bug and panics.
func isOwnedByCaller(ctx context.Context, m apimodels.ResponseModel) bool {
	owner := m.GetOwner()
	if owner == nil {
		return false
	}
	ac := auth.MustFromContext(ctx)
	return owner.ID == ac.User.ID
}
