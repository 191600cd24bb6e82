// Package availability computes which days of a window are free to book.
package availability

import (
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
)

// Compute returns, in ascending order, every day of the inclusive window
// [start, end] that no active reservation occupies.
//
// Each reservation is clamped to the window and every day of the clamped
// range [checkin, checkout] is busy, including the checkout day itself.
// Cancelled reservations and reservations outside the window are ignored.
// Compute has no side effects.
func Compute(start, end calendar.Date, reservations []model.Reservation) []calendar.Date {
	if end.Before(start) {
		return []calendar.Date{}
	}

	busy := make(map[int64]struct{})
	for i := range reservations {
		r := &reservations[i]
		if !r.IsActive() || !r.Occupies(start, end) {
			continue
		}
		from := calendar.Max(r.CheckinDate, start)
		to := calendar.Min(r.CheckoutDate, end)
		for d := from; !d.After(to); d = d.AddDays(1) {
			busy[d.Time().Unix()] = struct{}{}
		}
	}

	free := make([]calendar.Date, 0, start.DaysUntil(end)+1-len(busy))
	for d := start; !d.After(end); d = d.AddDays(1) {
		if _, taken := busy[d.Time().Unix()]; !taken {
			free = append(free, d)
		}
	}
	return free
}
