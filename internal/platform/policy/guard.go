// Package policy makes the per-request access decision for protected
// clinical routes. The current policy is deliberately permissive: every
// patient-scoped access is allowed, and a caller-supplied justification
// upgrades the outcome to an emergency-access (break-the-glass) allow that
// the audit trail records. Enforcement is advisory-and-logged, not
// preventive; the Deny outcome exists so the policy can be tightened later
// without changing callers.
package policy

import (
	"context"

	"github.com/clinichq/clinic-server/internal/platform/auth"
	"github.com/clinichq/clinic-server/internal/platform/routemeta"
)

// Outcome classifies an access decision.
type Outcome string

const (
	Allow Outcome = "ALLOW"
	// AllowWithJustification marks a break-the-glass access: allowed, with
	// the caller's justification attached for the audit trail.
	AllowWithJustification Outcome = "ALLOW_WITH_JUSTIFICATION"
	// Deny is reserved. The current policy never produces it.
	Deny Outcome = "DENY"
)

// Decision is the request-scoped result of evaluating the guard. It is
// stashed in the request context before the handler runs and consumed by the
// audit sink afterwards.
type Decision struct {
	Outcome       Outcome
	ActorID       string
	ActorRole     string
	PatientID     string
	Justification string
}

// Guard evaluates route metadata and caller identity into a Decision.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// Evaluate runs the decision algorithm in order:
//
//  1. Public route: allow, nothing else applies.
//  2. No identity: allow — authentication enforcement belongs to the auth
//     layer and the per-route role checks, not this guard.
//  3. Administrative role: allow.
//  4. Route not patient-scoped: allow.
//  5. Justification supplied: allow with justification (break-the-glass).
//  6. Otherwise: allow. Patient-scoped reads without justification are
//     permitted and rely on the audit trail for accountability.
func (g *Guard) Evaluate(route routemeta.Route, ident *auth.Identity, patientID, justification string) Decision {
	d := Decision{Outcome: Allow, PatientID: patientID}
	if ident != nil {
		d.ActorID = ident.ID
		d.ActorRole = ident.Role
	}

	if route.Public {
		return d
	}
	if ident == nil {
		return d
	}
	if auth.IsAdministrative(ident.Role) {
		return d
	}
	if !route.PatientScoped {
		return d
	}
	if justification != "" {
		d.Outcome = AllowWithJustification
		d.Justification = justification
		return d
	}
	return d
}

type decisionKey struct{}

// WithDecision returns a context carrying the access decision.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the access decision for the request, if the
// pipeline recorded one.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}
