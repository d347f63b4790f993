package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinichq/clinic-server/internal/platform/auth"
	"github.com/clinichq/clinic-server/internal/platform/routemeta"
	"github.com/clinichq/clinic-server/pkg/pagination"
)

// Handler exposes the audit trail and sink diagnostics over HTTP.
type Handler struct {
	store *StorePG
	sink  *Sink
}

func NewHandler(store *StorePG, sink *Sink) *Handler {
	return &Handler{store: store, sink: sink}
}

// RegisterRoutes binds audit routes and their metadata. Record search is
// admin-only; the stats endpoint is public infrastructure like /health.
func (h *Handler) RegisterRoutes(e *echo.Echo, reg *routemeta.Registry) {
	e.GET("/api/v1/audit-records", h.SearchRecords, auth.RequireRole(auth.AdminRole))
	reg.Register(routemeta.Route{
		Method:        http.MethodGet,
		Path:          "/api/v1/audit-records",
		RequiredRoles: []string{auth.AdminRole},
		Resource:      "audit-records",
	})

	e.GET("/internal/audit/stats", h.GetStats)
	reg.Register(routemeta.Route{
		Method:   http.MethodGet,
		Path:     "/internal/audit/stats",
		Public:   true,
		Resource: "audit-stats",
	})
}

// SearchRecords handles GET /api/v1/audit-records.
func (h *Handler) SearchRecords(c echo.Context) error {
	params := map[string]string{}
	for _, key := range []string{"action", "entity", "entity-id", "user-id", "break-glass"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}

	p := pagination.FromContext(c)
	records, total, err := h.store.Search(c.Request().Context(), params, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "audit record search failed")
	}
	if records == nil {
		records = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p.Limit, p.Offset))
}

// GetStats handles GET /internal/audit/stats.
func (h *Handler) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sink.Stats())
}
