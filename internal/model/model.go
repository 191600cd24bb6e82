// Package model defines the core domain types for the campsite reservation system.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
)

// DefaultNumOfGuests replaces a guest count of zero at write time.
const DefaultNumOfGuests = 4

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

// Reservation is a booking of the campsite for an inclusive range of days.
type Reservation struct {
	ID           uuid.UUID     `json:"-"`
	ExternalID   string        `json:"id"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Email        string        `json:"email"`
	CheckinDate  calendar.Date `json:"checkinDate"`
	CheckoutDate calendar.Date `json:"checkoutDate"`
	NumOfGuests  int           `json:"numOfGuests"`
	Status       Status        `json:"status"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// IsActive reports whether the reservation still occupies its dates.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}

// Occupies reports whether the reservation's inclusive range [checkin, checkout]
// shares at least one day with [start, end].
func (r *Reservation) Occupies(start, end calendar.Date) bool {
	return !r.CheckinDate.After(end) && !r.CheckoutDate.Before(start)
}

// Nights returns the length of the stay.
func (r *Reservation) Nights() int {
	return r.CheckinDate.DaysUntil(r.CheckoutDate)
}

// GuestsOrDefault maps a zero guest count to DefaultNumOfGuests.
func GuestsOrDefault(n int) int {
	if n == 0 {
		return DefaultNumOfGuests
	}
	return n
}

// CreateReservationRequest is the payload for booking the campsite.
type CreateReservationRequest struct {
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Email        string        `json:"email"`
	CheckinDate  calendar.Date `json:"checkinDate"`
	CheckoutDate calendar.Date `json:"checkoutDate"`
	NumOfGuests  int           `json:"numOfGuests"`
}

// UpdateReservationRequest is a partial update. Nil fields keep the stored value.
// Version, when set, must match the stored version.
type UpdateReservationRequest struct {
	FirstName    *string        `json:"firstName"`
	LastName     *string        `json:"lastName"`
	Email        *string        `json:"email"`
	CheckinDate  *calendar.Date `json:"checkinDate"`
	CheckoutDate *calendar.Date `json:"checkoutDate"`
	NumOfGuests  *int           `json:"numOfGuests"`
	Version      *int64         `json:"version"`
}

// ChangesDates reports whether applying req would move the stay of r.
func (req UpdateReservationRequest) ChangesDates(r *Reservation) bool {
	if req.CheckinDate != nil && !req.CheckinDate.Equal(r.CheckinDate) {
		return true
	}
	return req.CheckoutDate != nil && !req.CheckoutDate.Equal(r.CheckoutDate)
}

// Merge returns a copy of existing with every non-nil field of req applied.
// Absent fields keep the existing value; a guest count of zero becomes the
// default. Identity, status, version and creation time are never touched.
func Merge(existing Reservation, req UpdateReservationRequest) Reservation {
	merged := existing
	if req.FirstName != nil {
		merged.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		merged.LastName = *req.LastName
	}
	if req.Email != nil {
		merged.Email = *req.Email
	}
	if req.CheckinDate != nil {
		merged.CheckinDate = *req.CheckinDate
	}
	if req.CheckoutDate != nil {
		merged.CheckoutDate = *req.CheckoutDate
	}
	if req.NumOfGuests != nil {
		merged.NumOfGuests = GuestsOrDefault(*req.NumOfGuests)
	}
	return merged
}

// MessageResponse acknowledges a create or cancel.
type MessageResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
