package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no appointment matches the given id.
var ErrNotFound = errors.New("appointment not found")

// ErrVersionConflict is returned when a concurrent update bumped the version
// between read and write. Callers re-read and re-validate the transition.
var ErrVersionConflict = errors.New("appointment was modified concurrently")

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const apptCols = `id, patient_id, doctor_id, start_time, end_time, status,
	visit_type, notes, version_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime, &a.Status,
		&a.VisitType, &a.Notes, &a.VersionID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *RepoPG) Create(ctx context.Context, a *Appointment) error {
	const query = `
		INSERT INTO appointments (
			patient_id, doctor_id, start_time, end_time, status, visit_type, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, version_id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		a.PatientID, a.DoctorID, a.StartTime, a.EndTime, a.Status, a.VisitType, a.Notes,
	).Scan(&a.ID, &a.VersionID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", apptCols)
	return scanAppointment(r.pool.QueryRow(ctx, q, id))
}

// UpdateStatus applies a validated status under optimistic concurrency. The
// WHERE clause on version_id is the compare-and-set the lifecycle logic
// relies on.
func (r *RepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, expectedVersion int) error {
	const query = `
		UPDATE appointments
		SET status = $1, version_id = version_id + 1, updated_at = now()
		WHERE id = $2 AND version_id = $3`

	tag, err := r.pool.Exec(ctx, query, status, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *RepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "patient_id = $1", patientID, limit, offset)
}

func (r *RepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "doctor_id = $1", doctorID, limit, offset)
}

func (r *RepoPG) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Appointment, int, error) {
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM appointments WHERE %s", where)
	var total int
	if err := r.pool.QueryRow(ctx, countQ, arg).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM appointments WHERE %s ORDER BY start_time LIMIT $2 OFFSET $3", apptCols, where)
	rows, err := r.pool.Query(ctx, q, arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

// ListWaitingQueue returns checked-in appointments ordered by start time.
// The queue is a view over status — recomputed on every read.
func (r *RepoPG) ListWaitingQueue(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	const countQ = `SELECT COUNT(*) FROM appointments WHERE status = 'CHECKED_IN'`
	var total int
	if err := r.pool.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM appointments WHERE status = 'CHECKED_IN' ORDER BY start_time LIMIT $1 OFFSET $2", apptCols)
	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}
