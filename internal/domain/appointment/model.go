package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment maps to the appointments table. Status changes go through
// ApplyTransition; the column is never written directly by handlers.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Status    Status    `db:"status" json:"status"`
	VisitType *string   `db:"visit_type" json:"visit_type,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	VersionID int       `db:"version_id" json:"version_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InWaitingQueue reports whether the appointment belongs in the waiting-room
// queue. Queue membership is derived from status on every read; it is never
// stored as a separate flag that could drift.
func (a *Appointment) InWaitingQueue() bool {
	return a.Status == StatusCheckedIn
}
