package service

import (
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
)

func validateCreate(req model.CreateReservationRequest) error {
	switch {
	case req.FirstName == "":
		return fmt.Errorf("%w: first name is required", model.ErrInvalidParameter)
	case req.LastName == "":
		return fmt.Errorf("%w: last name is required", model.ErrInvalidParameter)
	case req.Email == "":
		return fmt.Errorf("%w: email is required", model.ErrInvalidParameter)
	case !isValidEmail(req.Email):
		return fmt.Errorf("%w: email format is invalid", model.ErrInvalidParameter)
	case req.CheckinDate.IsZero():
		return fmt.Errorf("%w: checkin date is required", model.ErrInvalidParameter)
	case req.CheckoutDate.IsZero():
		return fmt.Errorf("%w: checkout date is required", model.ErrInvalidParameter)
	case req.NumOfGuests < 0:
		return fmt.Errorf("%w: the number of guests must not be negative", model.ErrInvalidParameter)
	}
	return nil
}

func normalizeUpdate(req *model.UpdateReservationRequest) {
	for _, field := range []*string{req.FirstName, req.LastName} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
	if req.Email != nil {
		*req.Email = strings.TrimSpace(strings.ToLower(*req.Email))
	}
}

func validateUpdate(req model.UpdateReservationRequest) error {
	switch {
	case req.FirstName != nil && *req.FirstName == "":
		return fmt.Errorf("%w: first name must not be blank", model.ErrInvalidParameter)
	case req.LastName != nil && *req.LastName == "":
		return fmt.Errorf("%w: last name must not be blank", model.ErrInvalidParameter)
	case req.Email != nil && !isValidEmail(*req.Email):
		return fmt.Errorf("%w: email format is invalid", model.ErrInvalidParameter)
	case req.CheckinDate != nil && req.CheckinDate.IsZero():
		return fmt.Errorf("%w: checkin date must not be blank", model.ErrInvalidParameter)
	case req.CheckoutDate != nil && req.CheckoutDate.IsZero():
		return fmt.Errorf("%w: checkout date must not be blank", model.ErrInvalidParameter)
	case req.NumOfGuests != nil && *req.NumOfGuests < 0:
		return fmt.Errorf("%w: the number of guests must not be negative", model.ErrInvalidParameter)
	}
	return nil
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
