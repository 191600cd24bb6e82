// Package admission decides whether a stay may be booked and commits the
// decision atomically against concurrent bookings.
package admission

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
)

// MaxStayNights is the longest stay the campsite accepts.
const MaxStayNights = 3

// Stay is a requested check-in/check-out pair.
type Stay struct {
	Checkin  calendar.Date
	Checkout calendar.Date
}

func (s Stay) Nights() int {
	return s.Checkin.DaysUntil(s.Checkout)
}

func (s Stay) String() string {
	return s.Checkin.String() + ".." + s.Checkout.String()
}

// Policy holds the booking rules that depend on "today".
type Policy struct {
	Location *time.Location
	Now      func() time.Time
}

// NewPolicy returns a Policy evaluating "today" in loc with the wall clock.
func NewPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{Location: loc, Now: time.Now}
}

// Today is the current campsite day.
func (p Policy) Today() calendar.Date {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return calendar.Today(now(), p.Location)
}

// CheckinHorizon is the first day on which a stay may no longer start.
func (p Policy) CheckinHorizon() calendar.Date {
	return p.Today().AddDays(1).AddMonths(1)
}

// DefaultWindow is the availability window used when a client gives none:
// tomorrow through one month from today.
func (p Policy) DefaultWindow() (start, end calendar.Date) {
	today := p.Today()
	return today.AddDays(1), today.AddMonths(1)
}

// ValidateStay enforces the booking rules: check-in strictly in the future and
// before the horizon, check-out after check-in, at most MaxStayNights nights.
func (p Policy) ValidateStay(s Stay) error {
	today := p.Today()
	switch {
	case s.Checkin.IsZero() || s.Checkout.IsZero():
		return fmt.Errorf("%w: checkin and checkout dates are required", model.ErrInvalidParameter)
	case !s.Checkin.After(today):
		return fmt.Errorf("%w: the checkin date must be in the future", model.ErrInvalidParameter)
	case !s.Checkout.After(s.Checkin):
		return fmt.Errorf("%w: the checkout date must be after the checkin date", model.ErrInvalidParameter)
	case !s.Checkin.Before(p.CheckinHorizon()):
		return fmt.Errorf("%w: the checkin date must be before %s", model.ErrInvalidParameter, p.CheckinHorizon())
	case s.Nights() > MaxStayNights:
		return fmt.Errorf("%w: a stay cannot exceed %d nights", model.ErrInvalidParameter, MaxStayNights)
	}
	return nil
}

// ValidateWindow checks an availability query window. The window starts
// strictly in the future and before the check-in horizon, and ends after it
// starts but no later than the last day a maximal stay could check out.
func (p Policy) ValidateWindow(start, end calendar.Date) error {
	today := p.Today()
	limit := today.AddDays(MaxStayNights + 1).AddMonths(1)
	switch {
	case !start.After(today):
		return fmt.Errorf("%w: the start date must be in the future", model.ErrInvalidParameter)
	case !end.After(start):
		return fmt.Errorf("%w: the end date must be after the start date", model.ErrInvalidParameter)
	case !start.Before(p.CheckinHorizon()):
		return fmt.Errorf("%w: the start date must be before %s", model.ErrInvalidParameter, p.CheckinHorizon())
	case !end.Before(limit):
		return fmt.Errorf("%w: the end date must be before %s", model.ErrInvalidParameter, limit)
	}
	return nil
}
