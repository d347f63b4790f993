// Package audit provides the best-effort audit trail for state-changing
// requests and PHI access. Records are written by a background sink that is
// decoupled from the request path: a failed or slow audit write never
// surfaces to the HTTP caller.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

// ActionPHIAccess is the action recorded for reads of patient-scoped
// resources.
const ActionPHIAccess = "PHI_ACCESS"

// Record is one append-only audit trail entry. This subsystem only creates
// records; retention and export are owned externally.
type Record struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        *string         `db:"user_id" json:"user_id,omitempty"`
	UserRole      *string         `db:"user_role" json:"user_role,omitempty"`
	Action        string          `db:"action" json:"action"`
	Entity        string          `db:"entity" json:"entity"`
	EntityID      *string         `db:"entity_id" json:"entity_id,omitempty"`
	NewValues     json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	Justification *string         `db:"justification" json:"justification,omitempty"`
	IPAddress     *string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent     *string         `db:"user_agent" json:"user_agent,omitempty"`
	StatusCode    int             `db:"status_code" json:"status_code"`
	RequestID     *string         `db:"request_id" json:"request_id,omitempty"`
	RecordedAt    time.Time       `db:"recorded_at" json:"recorded_at"`
}

const maxUserAgentLen = 256

// SummarizeUserAgent reduces a raw User-Agent header to a short
// "Browser/Version (OS)" form for storage. Unparseable agents are kept
// verbatim, truncated to a bounded length.
func SummarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name != "" {
		summary := name
		if version != "" {
			summary += "/" + version
		}
		if os := ua.OS(); os != "" {
			summary += " (" + os + ")"
		}
		if len(summary) <= maxUserAgentLen {
			return summary
		}
	}
	if len(raw) > maxUserAgentLen {
		return raw[:maxUserAgentLen]
	}
	return raw
}
