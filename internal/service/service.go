// Package service implements reservation business logic, validation, and
// orchestration between HTTP handlers, the admission controller and the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/admission"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/availability"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/obs"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/repository"
)

// IDGenerator produces external reservation identifiers.
type IDGenerator interface {
	Next() (string, error)
}

const (
	// maxIDAttempts bounds retries after an external id collision.
	maxIDAttempts = 3
	// maxCancelAttempts bounds retries when a cancel races another write.
	maxCancelAttempts = 3
)

// ReservationService orchestrates the reservation lifecycle.
type ReservationService struct {
	store     repository.Store
	admission *admission.Controller
	ids       IDGenerator
	logger    *slog.Logger
	metrics   *obs.Metrics
	now       func() time.Time
}

// NewReservationService constructs a ReservationService with its dependencies.
// metrics may be nil.
func NewReservationService(
	store repository.Store,
	controller *admission.Controller,
	ids IDGenerator,
	logger *slog.Logger,
	metrics *obs.Metrics,
) *ReservationService {
	return &ReservationService{
		store:     store,
		admission: controller,
		ids:       ids,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// FindAvailableDates lists the free days of [start, end]. A nil start means
// tomorrow and a nil end means one month from today. The result is a
// snapshot and may be stale by the time the client books.
func (s *ReservationService) FindAvailableDates(ctx context.Context, start, end *calendar.Date) ([]calendar.Date, error) {
	policy := s.admission.Policy()
	from, to := policy.DefaultWindow()
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	if err := policy.ValidateWindow(from, to); err != nil {
		return nil, err
	}

	active, err := s.store.ActiveOverlapping(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("find available dates: %w", err)
	}
	return availability.Compute(from, to, active), nil
}

// List returns every reservation, including cancelled ones.
func (s *ReservationService) List(ctx context.Context) ([]model.Reservation, error) {
	reservations, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

// Get returns the ACTIVE reservation with the given external id.
func (s *ReservationService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: reservation id is required", model.ErrInvalidParameter)
	}
	res, err := s.store.ActiveByExternalID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("reservation with ID %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Create validates the request, admits its stay and stores an ACTIVE
// reservation. It returns the new external id.
func (s *ReservationService) Create(ctx context.Context, req model.CreateReservationRequest) (string, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := validateCreate(req); err != nil {
		return "", err
	}

	stay := admission.Stay{Checkin: req.CheckinDate, Checkout: req.CheckoutDate}
	for attempt := 1; ; attempt++ {
		externalID, err := s.ids.Next()
		if err != nil {
			return "", fmt.Errorf("generate reservation id: %w", err)
		}
		res := &model.Reservation{
			ID:           uuid.New(),
			ExternalID:   externalID,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			CheckinDate:  req.CheckinDate,
			CheckoutDate: req.CheckoutDate,
			NumOfGuests:  model.GuestsOrDefault(req.NumOfGuests),
			Status:       model.StatusActive,
			Version:      1,
			CreatedAt:    s.now().UTC(),
		}

		err = s.admission.Admit(ctx, stay, "", func(ctx context.Context, tx repository.Tx) error {
			return tx.Insert(ctx, res)
		})
		if errors.Is(err, model.ErrDuplicateExternalID) && attempt < maxIDAttempts {
			s.logger.Warn("reservation id collision, retrying", slog.String("id", externalID), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return "", surface("create reservation", err)
		}

		s.metrics.ReservationEvent("created")
		s.logger.Info("reservation created",
			slog.String("id", res.ExternalID),
			slog.String("checkin", res.CheckinDate.String()),
			slog.String("checkout", res.CheckoutDate.String()),
			slog.Int("guests", res.NumOfGuests),
		)
		return res.ExternalID, nil
	}
}

// Update applies the non-nil fields of req to the ACTIVE reservation id. A
// change of either date re-runs admission with the reservation excluded from
// the overlap check; other edits skip it. The write fails with
// model.ErrConflict if the reservation changed since it was read.
func (s *ReservationService) Update(ctx context.Context, id string, req model.UpdateReservationRequest) (*model.Reservation, error) {
	normalizeUpdate(&req)
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != existing.Version {
		return nil, fmt.Errorf("reservation %s is at version %d, not %d: %w", existing.ExternalID, existing.Version, *req.Version, model.ErrConflict)
	}

	merged := model.Merge(*existing, req)
	if req.ChangesDates(existing) {
		stay := admission.Stay{Checkin: merged.CheckinDate, Checkout: merged.CheckoutDate}
		err = s.admission.Admit(ctx, stay, existing.ExternalID, func(ctx context.Context, tx repository.Tx) error {
			return tx.Update(ctx, &merged)
		})
	} else {
		err = s.store.Update(ctx, &merged)
	}
	if err != nil {
		return nil, surface("update reservation", err)
	}

	s.metrics.ReservationEvent("updated")
	s.logger.Info("reservation updated",
		slog.String("id", merged.ExternalID),
		slog.Int64("version", merged.Version),
		slog.Bool("dates_changed", req.ChangesDates(existing)),
	)
	return &merged, nil
}

// Cancel marks the ACTIVE reservation id as CANCELLED, releasing its days.
// Cancelling an unknown or already cancelled reservation is model.ErrNotFound.
func (s *ReservationService) Cancel(ctx context.Context, id string) error {
	var err error
	for attempt := 1; attempt <= maxCancelAttempts; attempt++ {
		var res *model.Reservation
		res, err = s.Get(ctx, id)
		if err != nil {
			return err
		}
		res.Status = model.StatusCancelled
		err = s.store.Update(ctx, res)
		if !errors.Is(err, model.ErrConflict) {
			break
		}
	}
	if err != nil {
		return surface("cancel reservation", err)
	}

	s.metrics.ReservationEvent("cancelled")
	s.logger.Info("reservation cancelled", slog.String("id", id))
	return nil
}

// surface returns domain errors unchanged so handlers can pick a status code,
// and wraps everything else with the operation name.
func surface(op string, err error) error {
	if errors.Is(err, model.ErrInvalidParameter) ||
		errors.Is(err, model.ErrNoAvailability) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrConflict) ||
		errors.Is(err, model.ErrLockTimeout) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
