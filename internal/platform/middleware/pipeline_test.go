package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinichq/clinic-server/internal/platform/audit"
	"github.com/clinichq/clinic-server/internal/platform/auth"
	"github.com/clinichq/clinic-server/internal/platform/policy"
	"github.com/clinichq/clinic-server/internal/platform/routemeta"
)

func testRegistry() *routemeta.Registry {
	reg := routemeta.NewRegistry()
	reg.Register(routemeta.Route{Method: http.MethodGet, Path: "/health", Public: true})
	reg.Register(routemeta.Route{
		Method: http.MethodGet, Path: "/api/v1/patients/:id",
		Resource: "patient", PatientScoped: true, PatientParam: "id",
	})
	reg.Register(routemeta.Route{
		Method: http.MethodPost, Path: "/api/v1/patients",
		Resource: "patient",
	})
	reg.Register(routemeta.Route{
		Method: http.MethodGet, Path: "/api/v1/appointments/:id",
		Resource: "appointment", PatientScoped: true,
	})
	return reg
}

func identityMiddleware(ident *auth.Identity) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ident != nil {
				ctx := auth.WithIdentity(c.Request().Context(), ident)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// pipelineEnv bundles the server and stores used by the pipeline tests.
type pipelineEnv struct {
	e     *echo.Echo
	store *audit.MemStore
	sink  *audit.Sink
}

func newPipelineEnv(t *testing.T, ident *auth.Identity) *pipelineEnv {
	t.Helper()
	store := audit.NewMemStore()
	sink := audit.NewSink(store, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sink.Close(ctx)
	})

	e := echo.New()
	e.Use(identityMiddleware(ident))
	e.Use(AccessPipeline(testRegistry(), policy.NewGuard(), sink, zerolog.Nop()))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})
	e.POST("/api/v1/patients", func(c echo.Context) error {
		return c.JSON(http.StatusCreated, map[string]string{"id": "new-patient-id"})
	})
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		SetAuditPatient(c, "p-77")
		return c.JSON(http.StatusOK, map[string]string{
			"id":         c.Param("id"),
			"patient_id": "p-77",
		})
	})

	return &pipelineEnv{e: e, store: store, sink: sink}
}

func (env *pipelineEnv) drain(t *testing.T) []*audit.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := env.sink.Close(ctx); err != nil {
		t.Fatalf("drain sink: %v", err)
	}
	return env.store.Records()
}

func TestPipelinePublicRouteSkipsAudit(t *testing.T) {
	env := newPipelineEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if records := env.drain(t); len(records) != 0 {
		t.Errorf("expected no audit records for public route, got %d", len(records))
	}
}

func TestPipelinePHIReadRecorded(t *testing.T) {
	env := newPipelineEnv(t, &auth.Identity{ID: "doc-1", Role: auth.DoctorRole})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-42", nil)
	req.Header.Set("User-Agent", "integration-probe/1.0")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	records := env.drain(t)
	if len(records) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(records))
	}
	r := records[0]
	if r.Action != audit.ActionPHIAccess {
		t.Errorf("action = %q, want %q", r.Action, audit.ActionPHIAccess)
	}
	if r.Entity != "patient" {
		t.Errorf("entity = %q, want patient", r.Entity)
	}
	if r.EntityID == nil || *r.EntityID != "p-42" {
		t.Errorf("entity id = %v, want p-42", r.EntityID)
	}
	if r.UserID == nil || *r.UserID != "doc-1" {
		t.Errorf("user id = %v, want doc-1", r.UserID)
	}
	if r.Justification != nil {
		t.Errorf("justification = %v, want nil without break-glass header", r.Justification)
	}
	if r.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", r.StatusCode)
	}
}

// The appointment route's URL parameter is the appointment id; the audit
// record must name the owning patient the handler resolved, not the raw
// parameter.
func TestPipelineHandlerResolvedPatientRecorded(t *testing.T) {
	env := newPipelineEnv(t, &auth.Identity{ID: "doc-1", Role: auth.DoctorRole})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/appt-9", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	records := env.drain(t)
	if len(records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(records))
	}
	r := records[0]
	if r.Action != audit.ActionPHIAccess {
		t.Errorf("action = %q, want %q", r.Action, audit.ActionPHIAccess)
	}
	if r.Entity != "appointment" {
		t.Errorf("entity = %q, want appointment", r.Entity)
	}
	if r.EntityID == nil || *r.EntityID != "p-77" {
		t.Errorf("entity id = %v, want the resolved patient p-77", r.EntityID)
	}
}

func TestPipelineAdminReadNotRecorded(t *testing.T) {
	env := newPipelineEnv(t, &auth.Identity{ID: "admin-1", Role: auth.AdminRole})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-42", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if records := env.drain(t); len(records) != 0 {
		t.Errorf("expected no PHI record for administrative read, got %d", len(records))
	}
}

func TestPipelineBreakGlassJustificationAttached(t *testing.T) {
	env := newPipelineEnv(t, &auth.Identity{ID: "doc-1", Role: auth.DoctorRole})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-42", nil)
	req.Header.Set(HeaderJustification, "er consult, patient unconscious")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	records := env.drain(t)
	if len(records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(records))
	}
	r := records[0]
	if r.Justification == nil || *r.Justification != "er consult, patient unconscious" {
		t.Errorf("justification = %v, want header text", r.Justification)
	}
}

func TestPipelineMutationRecorded(t *testing.T) {
	env := newPipelineEnv(t, &auth.Identity{ID: "rec-1", Role: auth.ReceptionistRole})

	body := `{"first_name":"Ada","last_name":"Okafor"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	records := env.drain(t)
	if len(records) != 1 {
		t.Fatalf("expected exactly one audit record per mutation, got %d", len(records))
	}
	r := records[0]
	if r.Action != "POST /api/v1/patients" {
		t.Errorf("action = %q, want POST /api/v1/patients", r.Action)
	}
	if string(r.NewValues) != body {
		t.Errorf("new values = %s, want request body", r.NewValues)
	}
	// Entity id comes from the response payload for creates.
	if r.EntityID == nil || *r.EntityID != "new-patient-id" {
		t.Errorf("entity id = %v, want new-patient-id", r.EntityID)
	}
	if r.StatusCode != http.StatusCreated {
		t.Errorf("status code = %d, want 201", r.StatusCode)
	}
}

func TestPipelineHandlerErrorStatusCaptured(t *testing.T) {
	store := audit.NewMemStore()
	sink := audit.NewSink(store, zerolog.Nop())

	e := echo.New()
	e.Use(identityMiddleware(&auth.Identity{ID: "doc-1", Role: auth.DoctorRole}))
	e.Use(AccessPipeline(testRegistry(), policy.NewGuard(), sink, zerolog.Nop()))
	e.POST("/api/v1/patients", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "duplicate")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sink.Close(ctx)

	records := store.Records()
	if len(records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(records))
	}
	if records[0].StatusCode != http.StatusConflict {
		t.Errorf("status code = %d, want 409", records[0].StatusCode)
	}
}

func TestPipelineFailingStoreDoesNotAffectResponse(t *testing.T) {
	sink := audit.NewSink(failingAuditStore{}, zerolog.Nop())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sink.Close(ctx)
	}()

	e := echo.New()
	e.Use(identityMiddleware(&auth.Identity{ID: "doc-1", Role: auth.DoctorRole}))
	e.Use(AccessPipeline(testRegistry(), policy.NewGuard(), sink, zerolog.Nop()))
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even when audit store is down", rec.Code)
	}
}

type failingAuditStore struct{}

func (failingAuditStore) Insert(ctx context.Context, rec *audit.Record) error {
	return context.DeadlineExceeded
}

func TestPipelineAnonymousReadNotRecorded(t *testing.T) {
	env := newPipelineEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-1", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	if records := env.drain(t); len(records) != 0 {
		t.Errorf("expected no PHI record for anonymous read, got %d", len(records))
	}
}

func TestPipelineDecisionAvailableToHandler(t *testing.T) {
	store := audit.NewMemStore()
	sink := audit.NewSink(store, zerolog.Nop())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sink.Close(ctx)
	}()

	var seen policy.Decision
	e := echo.New()
	e.Use(identityMiddleware(&auth.Identity{ID: "doc-1", Role: auth.DoctorRole}))
	e.Use(AccessPipeline(testRegistry(), policy.NewGuard(), sink, zerolog.Nop()))
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		seen, _ = policy.DecisionFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-1", nil)
	req.Header.Set(HeaderJustification, "after-hours review")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if seen.Outcome != policy.AllowWithJustification {
		t.Errorf("handler saw outcome %q, want ALLOW_WITH_JUSTIFICATION", seen.Outcome)
	}
}
