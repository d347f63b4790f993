package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service enforces appointment lifecycle rules on top of the repository.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "appointment").Logger()}
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return errors.New("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return errors.New("doctor_id is required")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return errors.New("start_time and end_time are required")
	}
	if !a.EndTime.After(a.StartTime) {
		return errors.New("end_time must be after start_time")
	}

	// Every appointment is born SCHEDULED regardless of what the client sent.
	a.Status = StatusScheduled

	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Msg("appointment created")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Transition moves the appointment to the requested status if the lifecycle
// graph allows it. The read-validate-write cycle is serialized by the
// repository's version check, so two racing transitions cannot both apply.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, requested Status) (*Appointment, error) {
	if !requested.Valid() {
		return nil, fmt.Errorf("unknown status %q", requested)
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := ApplyTransition(a.Status, requested)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, next, a.VersionID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(a.Status)).
		Str("to", string(next)).
		Msg("appointment status changed")

	a.Status = next
	a.VersionID++
	return a, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// WaitingQueue lists appointments currently checked in, in arrival order by
// scheduled start. Membership is purely a function of status.
func (s *Service) WaitingQueue(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListWaitingQueue(ctx, limit, offset)
}
