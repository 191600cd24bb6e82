package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/obs"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/repository"
)

// WriteFunc persists an admitted stay through the admission transaction.
type WriteFunc func(ctx context.Context, tx repository.Tx) error

// Controller is the only path through which a stay claims campsite days.
type Controller struct {
	store   repository.Store
	policy  Policy
	logger  *slog.Logger
	metrics *obs.Metrics
}

// NewController constructs a Controller. metrics may be nil.
func NewController(store repository.Store, policy Policy, logger *slog.Logger, metrics *obs.Metrics) *Controller {
	return &Controller{store: store, policy: policy, logger: logger, metrics: metrics}
}

// Policy returns the rules the controller enforces.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Admit validates stay and, holding the store's admission lock, rejects it if
// any other ACTIVE reservation occupies one of its days. Otherwise write runs
// in the same scope and the result is committed.
//
// excludeExternalID names a reservation to ignore during the overlap check,
// so that a reservation being moved does not collide with itself.
//
// Of any set of concurrent calls whose stays pairwise overlap, at most one
// succeeds; the others observe model.ErrNoAvailability.
func (c *Controller) Admit(ctx context.Context, stay Stay, excludeExternalID string, write WriteFunc) error {
	started := time.Now()

	if err := c.policy.ValidateStay(stay); err != nil {
		c.record(obs.OutcomeInvalid, started, stay, err)
		return err
	}

	err := c.store.Admit(ctx, func(ctx context.Context, tx repository.Tx) error {
		overlapping, err := tx.ActiveOverlapping(ctx, stay.Checkin, stay.Checkout)
		if err != nil {
			return err
		}
		for _, r := range overlapping {
			if r.ExternalID == excludeExternalID {
				continue
			}
			return fmt.Errorf("%w: %s overlaps an existing reservation", model.ErrNoAvailability, stay)
		}
		return write(ctx, tx)
	})
	c.record(outcomeOf(err), started, stay, err)
	return err
}

func (c *Controller) record(outcome string, started time.Time, stay Stay, err error) {
	c.metrics.ObserveAdmission(outcome, time.Since(started))

	attrs := []any{
		slog.String("outcome", outcome),
		slog.String("checkin", stay.Checkin.String()),
		slog.String("checkout", stay.Checkout.String()),
	}
	switch outcome {
	case obs.OutcomeAccepted:
		c.logger.Debug("admission accepted", attrs...)
	case obs.OutcomeError:
		c.logger.Error("admission failed", append(attrs, slog.Any("error", err))...)
	default:
		c.logger.Info("admission rejected", append(attrs, slog.String("reason", err.Error()))...)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return obs.OutcomeAccepted
	case errors.Is(err, model.ErrInvalidParameter):
		return obs.OutcomeInvalid
	case errors.Is(err, model.ErrNoAvailability):
		return obs.OutcomeUnavailable
	case errors.Is(err, model.ErrLockTimeout):
		return obs.OutcomeLockTimeout
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrDuplicateExternalID):
		return obs.OutcomeConflict
	default:
		return obs.OutcomeError
	}
}
