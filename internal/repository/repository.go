// Package repository implements reservation persistence for the campsite.
// The PostgreSQL store uses pgx directly (no ORM); MemoryStore backs tests and
// local development.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
)

// DefaultLockTimeout bounds how long Admit waits for the admission lock.
const DefaultLockTimeout = 5 * time.Second

// campsiteLockKey identifies the advisory lock guarding admissions. There is
// exactly one bookable resource, so one key serialises every admission.
const campsiteLockKey int64 = 0x63616d70 // "camp"

// PostgreSQL error codes mapped onto the domain taxonomy.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
	pgLockNotAvailable   = "55P03"
)

// Store is the reservation persistence contract used by the lifecycle manager.
type Store interface {
	// Admit runs fn while holding the store's admission lock. Only one Admit
	// scope is active at a time; writes made through tx become visible when fn
	// returns nil and are discarded otherwise. Waiting for the lock is bounded
	// and fails with model.ErrLockTimeout.
	Admit(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ActiveOverlapping returns a snapshot of the ACTIVE reservations whose
	// inclusive range shares a day with [start, end], ordered by check-in. It
	// takes no lock and may race with writers.
	ActiveOverlapping(ctx context.Context, start, end calendar.Date) ([]model.Reservation, error)

	// ActiveByExternalID returns the ACTIVE reservation or model.ErrNotFound.
	ActiveByExternalID(ctx context.Context, externalID string) (*model.Reservation, error)

	// List returns every reservation regardless of status.
	List(ctx context.Context) ([]model.Reservation, error)

	// Update overwrites the mutable fields of an ACTIVE reservation if its
	// stored version still equals r.Version, then increments r.Version.
	// A stale version yields model.ErrConflict.
	Update(ctx context.Context, r *model.Reservation) error
}

// Tx is the view of the store available inside an admission scope.
type Tx interface {
	ActiveOverlapping(ctx context.Context, start, end calendar.Date) ([]model.Reservation, error)
	Insert(ctx context.Context, r *model.Reservation) error
	Update(ctx context.Context, r *model.Reservation) error
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const reservationColumns = `id, external_id, first_name, last_name, email,
	checkin_date, checkout_date, num_guests, status, version, created_at`

// ReservationRepository is the PostgreSQL Store.
type ReservationRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewReservationRepository constructs a ReservationRepository. A non-positive
// lockTimeout selects DefaultLockTimeout.
func NewReservationRepository(db *pgxpool.Pool, lockTimeout time.Duration) *ReservationRepository {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &ReservationRepository{db: db, lockTimeout: lockTimeout}
}

// Admit runs fn inside a transaction that holds the campsite advisory lock.
//
// Naive read-then-write is broken: two requests for overlapping dates can both
// read "no overlapping reservation" before either inserts, and both succeed.
// pg_advisory_xact_lock serialises every admission until COMMIT or ROLLBACK,
// so the overlap read always sees the previous winner's row. The exclusion
// constraint on the table backs this up if a writer ever bypasses the lock.
func (r *ReservationRepository) Admit(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	// Waiting for a pooled connection counts against the lock timeout too.
	beginCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	tx, err := r.db.Begin(beginCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", beginError(ctx, err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// lock_timeout applies to this transaction only.
	timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
	if _, err = tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, campsiteLockKey); err != nil {
		return fmt.Errorf("acquire admission lock: %w", mapPgError(err))
	}

	if err = fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapPgError(err))
	}
	return nil
}

// ActiveOverlapping implements Store.
func (r *ReservationRepository) ActiveOverlapping(ctx context.Context, start, end calendar.Date) ([]model.Reservation, error) {
	return activeOverlapping(ctx, r.db, start, end)
}

// ActiveByExternalID implements Store.
func (r *ReservationRepository) ActiveByExternalID(ctx context.Context, externalID string) (*model.Reservation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE external_id = $1 AND status = 'ACTIVE'`,
		externalID,
	)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// List implements Store.
func (r *ReservationRepository) List(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 ORDER BY checkin_date ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return collectReservations(rows)
}

// Update implements Store.
func (r *ReservationRepository) Update(ctx context.Context, res *model.Reservation) error {
	return update(ctx, r.db, res)
}

// pgTx is the Tx handed to Admit callbacks.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) ActiveOverlapping(ctx context.Context, start, end calendar.Date) ([]model.Reservation, error) {
	return activeOverlapping(ctx, t.tx, start, end)
}

func (t *pgTx) Insert(ctx context.Context, res *model.Reservation) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		res.ID, res.ExternalID, res.FirstName, res.LastName, res.Email,
		res.CheckinDate.Time(), res.CheckoutDate.Time(), res.NumOfGuests,
		string(res.Status), res.Version, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", mapPgError(err))
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, res *model.Reservation) error {
	return update(ctx, t.tx, res)
}

func activeOverlapping(ctx context.Context, db dbtx, start, end calendar.Date) ([]model.Reservation, error) {
	rows, err := db.Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE status = 'ACTIVE'
		   AND checkin_date <= $2
		   AND checkout_date >= $1
		 ORDER BY checkin_date ASC`,
		start.Time(), end.Time(),
	)
	if err != nil {
		return nil, fmt.Errorf("query overlapping reservations: %w", err)
	}
	return collectReservations(rows)
}

func update(ctx context.Context, db dbtx, res *model.Reservation) error {
	tag, err := db.Exec(ctx,
		`UPDATE reservations
		 SET first_name = $3, last_name = $4, email = $5,
		     checkin_date = $6, checkout_date = $7, num_guests = $8,
		     status = $9, version = version + 1
		 WHERE id = $1 AND version = $2 AND status = 'ACTIVE'`,
		res.ID, res.Version, res.FirstName, res.LastName, res.Email,
		res.CheckinDate.Time(), res.CheckoutDate.Time(), res.NumOfGuests,
		string(res.Status),
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update reservation %s at version %d: %w", res.ExternalID, res.Version, model.ErrConflict)
	}
	res.Version++
	return nil
}

func collectReservations(rows pgx.Rows) ([]model.Reservation, error) {
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var (
		res               model.Reservation
		checkin, checkout time.Time
		status            string
	)
	err := row.Scan(
		&res.ID, &res.ExternalID, &res.FirstName, &res.LastName, &res.Email,
		&checkin, &checkout, &res.NumOfGuests, &status, &res.Version, &res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.CheckinDate = calendar.FromTime(checkin)
	res.CheckoutDate = calendar.FromTime(checkout)
	res.Status = model.Status(status)
	return &res, nil
}

// beginError reports an expired acquire deadline as model.ErrLockTimeout,
// unless the caller's own context is what ended.
func beginError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return model.ErrLockTimeout
	}
	return err
}

// mapPgError translates constraint and lock failures into domain errors and
// leaves everything else untouched.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", model.ErrDuplicateExternalID, pgErr.ConstraintName)
	case pgExclusionViolation:
		return fmt.Errorf("%w: %s", model.ErrNoAvailability, pgErr.ConstraintName)
	case pgLockNotAvailable:
		return model.ErrLockTimeout
	default:
		return err
	}
}
