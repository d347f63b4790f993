// Package routemeta holds the central route-metadata table consulted by the
// access pipeline before dispatch. Every route the server exposes is
// registered here alongside its echo binding, so visibility (public vs
// protected), role requirements, and patient scoping live in one table
// instead of being scattered across handlers.
package routemeta

import "strings"

// Route describes the access-relevant metadata of one registered route.
type Route struct {
	Method string
	// Path is the echo route pattern, e.g. "/api/v1/patients/:id".
	Path string
	// Public routes bypass authentication and the policy guard entirely.
	Public bool
	// RequiredRoles lists roles allowed on the route. Empty means any
	// authenticated role.
	RequiredRoles []string
	// PatientScoped marks routes whose target is a single patient's data.
	PatientScoped bool
	// PatientParam is the route parameter carrying the patient identifier
	// ("id" or "patientId"). Only meaningful when PatientScoped is true.
	PatientParam string
	// Resource is the owning resource name, used as the audit entity type.
	Resource string
}

// Registry is the process-wide route-metadata table. It is populated once
// during route registration at startup and read-only afterwards, so lookups
// need no locking.
type Registry struct {
	routes map[string]Route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]Route)}
}

func key(method, path string) string {
	return method + " " + path
}

// Register adds a route to the table. Registering the same method+path twice
// overwrites the earlier entry; the last registration wins.
func (r *Registry) Register(rt Route) {
	r.routes[key(rt.Method, rt.Path)] = rt
}

// Lookup returns the metadata for a method and echo route pattern. Unknown
// routes report ok=false; callers treat them as protected and not
// patient-scoped.
func (r *Registry) Lookup(method, path string) (Route, bool) {
	rt, ok := r.routes[key(method, path)]
	return rt, ok
}

// IsPublic reports whether the given method+path is registered as public.
func (r *Registry) IsPublic(method, path string) bool {
	rt, ok := r.Lookup(method, path)
	return ok && rt.Public
}

// Routes returns a copy of all registered routes, for diagnostics.
func (r *Registry) Routes() []Route {
	out := make([]Route, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt)
	}
	return out
}

// EntityFromPath derives a resource name from a URL path when a route has no
// explicit Resource set. "/api/v1/appointments/123/status" yields
// "appointments".
func EntityFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	if trimmed == path {
		trimmed = strings.TrimPrefix(path, "/")
	}
	segments := strings.Split(trimmed, "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}
