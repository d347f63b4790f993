package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinichq/clinic-server/internal/platform/audit"
	"github.com/clinichq/clinic-server/internal/platform/auth"
	"github.com/clinichq/clinic-server/internal/platform/policy"
	"github.com/clinichq/clinic-server/internal/platform/routemeta"
)

// HeaderJustification carries the caller's free-text break-the-glass
// justification for accessing a patient's data.
const HeaderJustification = "X-Break-Glass"

// maxSnapshotBytes bounds the request/response bytes retained for the audit
// payload snapshot.
const maxSnapshotBytes = 64 * 1024

const auditPatientKey = "audit_patient_id"

// SetAuditPatient reports the patient a request actually touched. Handlers
// for patient-scoped routes whose URL parameter is not a patient identifier
// (an appointment id, say) call this once the owning patient is known, so
// the access record names the right subject.
func SetAuditPatient(c echo.Context, patientID string) {
	c.Set(auditPatientKey, patientID)
}

// AccessPipeline wires the per-request access governance: route-metadata
// lookup, policy evaluation, handler execution, and audit scheduling. The
// audit writes are fire-and-forget — the sink is notified after the handler
// finishes and the response status is known, and nothing the sink does can
// delay or fail the response. Handler errors pass through unchanged.
func AccessPipeline(reg *routemeta.Registry, guard *policy.Guard, sink *audit.Sink, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			meta, known := reg.Lookup(req.Method, c.Path())
			if known && meta.Public {
				return next(c)
			}
			// Unregistered routes are treated as protected and not
			// patient-scoped; they still get mutation auditing.

			ident := auth.IdentityFromContext(req.Context())

			patientID := ""
			if meta.PatientScoped && meta.PatientParam != "" {
				patientID = c.Param(meta.PatientParam)
			}
			justification := req.Header.Get(HeaderJustification)

			decision := guard.Evaluate(meta, ident, patientID, justification)
			c.SetRequest(req.WithContext(policy.WithDecision(req.Context(), decision)))
			req = c.Request()

			mutation := isMutation(req.Method)

			var reqSnapshot []byte
			var respBody *boundedBuffer
			if mutation {
				reqSnapshot = snapshotRequestBody(c)
				respBody = captureResponseBody(c)
			}

			err := next(c)

			// Handlers may have resolved the actual patient behind a
			// non-patient URL parameter.
			if v, ok := c.Get(auditPatientKey).(string); ok && v != "" {
				patientID = v
			}

			status := c.Response().Status
			if err != nil {
				status = statusFromError(err)
			}

			entity := meta.Resource
			if entity == "" {
				entity = routemeta.EntityFromPath(req.URL.Path)
			}
			requestID, _ := c.Get("request_id").(string)

			if mutation {
				rec := &audit.Record{
					Action:     req.Method + " " + req.URL.Path,
					Entity:     entity,
					EntityID:   entityIDPtr(c, meta, respBody),
					NewValues:  jsonSnapshot(reqSnapshot),
					StatusCode: status,
					IPAddress:  ptrOrNil(c.RealIP()),
					UserAgent:  ptrOrNil(audit.SummarizeUserAgent(req.UserAgent())),
					RequestID:  ptrOrNil(requestID),
				}
				applyDecision(rec, decision)
				sink.Enqueue(rec)
			}

			if !mutation && meta.PatientScoped && patientID != "" &&
				ident != nil && !auth.IsAdministrative(ident.Role) {
				rec := &audit.Record{
					Action:     audit.ActionPHIAccess,
					Entity:     entity,
					EntityID:   &patientID,
					StatusCode: status,
					IPAddress:  ptrOrNil(c.RealIP()),
					UserAgent:  ptrOrNil(audit.SummarizeUserAgent(req.UserAgent())),
					RequestID:  ptrOrNil(requestID),
				}
				applyDecision(rec, decision)
				if decision.Outcome == policy.AllowWithJustification {
					logger.Warn().
						Str("user_id", decision.ActorID).
						Str("role", decision.ActorRole).
						Str("patient_id", patientID).
						Str("justification", decision.Justification).
						Str("path", req.URL.Path).
						Msg("break_glass_access")
				}
				sink.Enqueue(rec)
			}

			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func statusFromError(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}

func applyDecision(rec *audit.Record, d policy.Decision) {
	if d.ActorID != "" {
		rec.UserID = &d.ActorID
	}
	if d.ActorRole != "" {
		rec.UserRole = &d.ActorRole
	}
	if d.Justification != "" {
		rec.Justification = &d.Justification
	}
}

// snapshotRequestBody reads and restores the request body so the handler can
// still consume it. The snapshot is bounded; oversized bodies are truncated
// for the audit record only.
func snapshotRequestBody(c echo.Context) []byte {
	req := c.Request()
	if req.Body == nil {
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(req.Body, maxSnapshotBytes+1))
	req.Body.Close()
	if err != nil {
		req.Body = io.NopCloser(bytes.NewReader(nil))
		return nil
	}
	req.Body = io.NopCloser(bytes.NewReader(buf))
	if len(buf) > maxSnapshotBytes {
		return buf[:maxSnapshotBytes]
	}
	return buf
}

// jsonSnapshot returns the body as a JSON snapshot, or nil when the body is
// empty or not valid JSON (truncated bodies typically are not).
func jsonSnapshot(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}

// boundedBuffer tees response writes into memory up to a fixed cap.
type boundedBuffer struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len() < maxSnapshotBytes {
		remain := maxSnapshotBytes - b.buf.Len()
		if remain > len(p) {
			remain = len(p)
		}
		b.buf.Write(p[:remain])
	}
	return b.ResponseWriter.Write(p)
}

func captureResponseBody(c echo.Context) *boundedBuffer {
	bb := &boundedBuffer{ResponseWriter: c.Response().Writer}
	c.Response().Writer = bb
	return bb
}

// entityIDPtr resolves the audited entity id: route parameters first, then
// the identifier field of the response payload (for creates).
func entityIDPtr(c echo.Context, meta routemeta.Route, respBody *boundedBuffer) *string {
	if id := c.Param("id"); id != "" {
		return &id
	}
	if meta.PatientParam != "" {
		if id := c.Param(meta.PatientParam); id != "" {
			return &id
		}
	}
	if respBody != nil {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody.buf.Bytes(), &payload); err == nil && payload.ID != "" {
			return &payload.ID
		}
	}
	return nil
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
