package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for appointments. UpdateStatus must
// be a compare-and-set on the version column: the lifecycle validation is
// pure, so the store supplies the serialization that prevents lost updates
// between concurrent transition requests.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, expectedVersion int) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListWaitingQueue(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
}
