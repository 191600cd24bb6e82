package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/admission"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/calendar"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/idgen"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/model"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/obs"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/repository"
)

// createResult is the outcome of one concurrent Create call.
type createResult struct {
	Email      string
	ExternalID string
	Error      error
}

// today is pinned for every test in this package.
var today = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

// trackingStore counts admission scopes opened against the wrapped store.
type trackingStore struct {
	*repository.MemoryStore
	admits atomic.Int32
}

func (s *trackingStore) Admit(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.admits.Add(1)
	return s.MemoryStore.Admit(ctx, fn)
}

// scriptedIDs hands out ids in order, then repeats the last one.
type scriptedIDs struct {
	mu  sync.Mutex
	ids []string
}

func (g *scriptedIDs) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[0]
	if len(g.ids) > 1 {
		g.ids = g.ids[1:]
	}
	return id, nil
}

func newTestService(t *testing.T, ids IDGenerator, lockTimeout time.Duration) (*ReservationService, *trackingStore) {
	t.Helper()
	store := &trackingStore{MemoryStore: repository.NewMemoryStore(lockTimeout)}
	policy := admission.Policy{Location: time.UTC, Now: func() time.Time { return today }}
	controller := admission.NewController(store, policy, obs.Discard(), obs.NewMetrics("test"))
	if ids == nil {
		ids = idgen.New()
	}
	svc := NewReservationService(store, controller, ids, obs.Discard(), obs.NewMetrics("test"))
	svc.now = func() time.Time { return today }
	return svc, store
}

func request(checkin, checkout string) model.CreateReservationRequest {
	return model.CreateReservationRequest{
		FirstName:    "Natalie",
		LastName:     "Villan",
		Email:        "Natalie@Example.com ",
		CheckinDate:  calendar.MustParse(checkin),
		CheckoutDate: calendar.MustParse(checkout),
		NumOfGuests:  2,
	}
}

func ptr[T any](v T) *T { return &v }

func create(t *testing.T, svc *ReservationService, checkin, checkout string) string {
	t.Helper()
	id, err := svc.Create(context.Background(), request(checkin, checkout))
	require.NoError(t, err)
	return id
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	ctx := context.Background()

	id := create(t, svc, "2026-10-20", "2026-10-23")
	assert.Regexp(t, `^RSV\d+$`, id)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ExternalID)
	assert.Equal(t, "Natalie", got.FirstName)
	assert.Equal(t, "Villan", got.LastName)
	assert.Equal(t, "natalie@example.com", got.Email)
	assert.Equal(t, "2026-10-20", got.CheckinDate.String())
	assert.Equal(t, "2026-10-23", got.CheckoutDate.String())
	assert.Equal(t, 2, got.NumOfGuests)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, today, got.CreatedAt)
}

func TestCreateDefaultsGuestCount(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	req := request("2026-10-20", "2026-10-21")
	req.NumOfGuests = 0

	id, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultNumOfGuests, got.NumOfGuests)
}

func TestCreateValidation(t *testing.T) {
	svc, store := newTestService(t, nil, time.Second)
	tests := map[string]func(*model.CreateReservationRequest){
		"missing first name": func(r *model.CreateReservationRequest) { r.FirstName = "  " },
		"missing last name":  func(r *model.CreateReservationRequest) { r.LastName = "" },
		"missing email":      func(r *model.CreateReservationRequest) { r.Email = "" },
		"malformed email":    func(r *model.CreateReservationRequest) { r.Email = "natalie.example.com" },
		"missing checkin":    func(r *model.CreateReservationRequest) { r.CheckinDate = calendar.Date{} },
		"missing checkout":   func(r *model.CreateReservationRequest) { r.CheckoutDate = calendar.Date{} },
		"negative guests":    func(r *model.CreateReservationRequest) { r.NumOfGuests = -1 },
		"four nights":        func(r *model.CreateReservationRequest) { r.CheckoutDate = r.CheckinDate.AddDays(4) },
		"checkin today":      func(r *model.CreateReservationRequest) { r.CheckinDate = calendar.FromTime(today) },
		"too far ahead":      func(r *model.CreateReservationRequest) { r.CheckinDate, r.CheckoutDate = calendar.MustParse("2026-11-16"), calendar.MustParse("2026-11-17") },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := request("2026-10-20", "2026-10-22")
			mutate(&req)
			_, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, model.ErrInvalidParameter)
		})
	}

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "rejected requests must not write")
	assert.Zero(t, store.admits.Load(), "range checks run before the lock")
}

func TestCreateStayLengthBoundary(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	_, err := svc.Create(context.Background(), request("2026-10-20", "2026-10-23"))
	assert.NoError(t, err)
	_, err = svc.Create(context.Background(), request("2026-10-26", "2026-10-30"))
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestCreateRejectsOverlapIncludingCheckoutDay(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	create(t, svc, "2026-10-25", "2026-10-28")

	_, err := svc.Create(context.Background(), request("2026-10-27", "2026-10-29"))
	assert.ErrorIs(t, err, model.ErrNoAvailability)

	_, err = svc.Create(context.Background(), request("2026-10-28", "2026-10-30"))
	assert.ErrorIs(t, err, model.ErrNoAvailability, "checkout day counts as occupied")

	_, err = svc.Create(context.Background(), request("2026-10-29", "2026-10-31"))
	assert.NoError(t, err)
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	svc, _ := newTestService(t, &scriptedIDs{ids: []string{"RSV1", "RSV1", "RSV2"}}, time.Second)
	assert.Equal(t, "RSV1", create(t, svc, "2026-10-20", "2026-10-21"))
	assert.Equal(t, "RSV2", create(t, svc, "2026-10-25", "2026-10-26"))
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, _ := newTestService(t, &scriptedIDs{ids: []string{"RSV1"}}, time.Second)
	create(t, svc, "2026-10-20", "2026-10-21")

	_, err := svc.Create(context.Background(), request("2026-10-25", "2026-10-26"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDuplicateExternalID)
	assert.NotErrorIs(t, err, model.ErrNoAvailability)
}

func TestCreateLockTimeoutIsRetryable(t *testing.T) {
	svc, store := newTestService(t, nil, 20*time.Millisecond)
	holding, release := make(chan struct{}), make(chan struct{})
	go func() {
		_ = store.MemoryStore.Admit(context.Background(), func(context.Context, repository.Tx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	_, err := svc.Create(context.Background(), request("2026-10-20", "2026-10-21"))
	assert.ErrorIs(t, err, model.ErrLockTimeout)
}

func TestGetUnknown(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	_, err := svc.Get(context.Background(), "RSV404")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.Get(context.Background(), " ")
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestCancelReleasesDates(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	ctx := context.Background()
	id := create(t, svc, "2026-10-20", "2026-10-22")

	require.NoError(t, svc.Cancel(ctx, id))

	_, err := svc.Get(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, svc.Cancel(ctx, id), model.ErrNotFound, "second cancel")

	start, end := calendar.MustParse("2026-10-20"), calendar.MustParse("2026-10-22")
	free, err := svc.FindAvailableDates(ctx, &start, &end)
	require.NoError(t, err)
	assert.Len(t, free, 3)

	_, err = svc.Create(ctx, request("2026-10-20", "2026-10-22"))
	assert.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, r := range all {
		if r.ExternalID == id {
			assert.Equal(t, model.StatusCancelled, r.Status)
			assert.Equal(t, int64(2), r.Version)
		} else {
			assert.Equal(t, model.StatusActive, r.Status)
		}
	}
}

func TestUpdateWithoutDateChangeSkipsAdmission(t *testing.T) {
	svc, store := newTestService(t, nil, time.Second)
	ctx := context.Background()
	id := create(t, svc, "2026-10-20", "2026-10-22")
	admitsAfterCreate := store.admits.Load()

	got, err := svc.Update(ctx, id, model.UpdateReservationRequest{
		NumOfGuests: ptr(6),
		CheckinDate: ptr(calendar.MustParse("2026-10-20")),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, got.NumOfGuests)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, admitsAfterCreate, store.admits.Load())

	stored, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.NumOfGuests)
	assert.Equal(t, "Natalie", stored.FirstName)
}

func TestUpdateMovesDatesExcludingItself(t *testing.T) {
	svc, store := newTestService(t, nil, time.Second)
	ctx := context.Background()
	id := create(t, svc, "2026-10-20", "2026-10-22")
	admitsAfterCreate := store.admits.Load()

	got, err := svc.Update(ctx, id, model.UpdateReservationRequest{CheckoutDate: ptr(calendar.MustParse("2026-10-23"))})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", got.CheckinDate.String())
	assert.Equal(t, "2026-10-23", got.CheckoutDate.String())
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, admitsAfterCreate+1, store.admits.Load())

	start, end := calendar.MustParse("2026-10-19"), calendar.MustParse("2026-10-24")
	free, err := svc.FindAvailableDates(ctx, &start, &end)
	require.NoError(t, err)
	require.Len(t, free, 2)
	assert.Equal(t, "2026-10-19", free[0].String())
	assert.Equal(t, "2026-10-24", free[1].String())
}

func TestUpdateRejectsMoveOntoAnotherReservation(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	ctx := context.Background()
	id := create(t, svc, "2026-10-20", "2026-10-21")
	create(t, svc, "2026-10-24", "2026-10-26")

	_, err := svc.Update(ctx, id, model.UpdateReservationRequest{
		CheckinDate:  ptr(calendar.MustParse("2026-10-22")),
		CheckoutDate: ptr(calendar.MustParse("2026-10-24")),
		FirstName:    ptr("Bob"),
	})
	assert.ErrorIs(t, err, model.ErrNoAvailability)

	stored, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", stored.CheckinDate.String())
	assert.Equal(t, "Natalie", stored.FirstName)
	assert.Equal(t, int64(1), stored.Version)
}

func TestUpdateRevalidatesRange(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	id := create(t, svc, "2026-10-20", "2026-10-21")

	_, err := svc.Update(context.Background(), id, model.UpdateReservationRequest{CheckoutDate: ptr(calendar.MustParse("2026-10-25"))})
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	_, err = svc.Update(context.Background(), id, model.UpdateReservationRequest{Email: ptr("not-an-email")})
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestUpdateUnknownOrCancelled(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	ctx := context.Background()
	_, err := svc.Update(ctx, "RSV404", model.UpdateReservationRequest{NumOfGuests: ptr(1)})
	assert.ErrorIs(t, err, model.ErrNotFound)

	id := create(t, svc, "2026-10-20", "2026-10-21")
	require.NoError(t, svc.Cancel(ctx, id))
	_, err = svc.Update(ctx, id, model.UpdateReservationRequest{NumOfGuests: ptr(1)})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateStaleClientVersionConflicts(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	ctx := context.Background()
	id := create(t, svc, "2026-10-20", "2026-10-21")

	_, err := svc.Update(ctx, id, model.UpdateReservationRequest{NumOfGuests: ptr(3), Version: ptr(int64(1))})
	require.NoError(t, err)

	_, err = svc.Update(ctx, id, model.UpdateReservationRequest{NumOfGuests: ptr(5), Version: ptr(int64(1))})
	assert.ErrorIs(t, err, model.ErrConflict)

	stored, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.NumOfGuests)
}

func TestConcurrentUpdatesNeverLoseWrites(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	ctx := context.Background()
	id := create(t, svc, "2026-10-20", "2026-10-21")

	const writers = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Update(ctx, id, model.UpdateReservationRequest{NumOfGuests: ptr(n + 1)})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, model.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, succeeded.Load(), int64(1))
	assert.Equal(t, 1+succeeded.Load(), stored.Version, "every success bumps the version exactly once")
}

func TestConcurrentOverlappingCreatesHaveOneWinner(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	const clients = 25

	results := make(chan createResult, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checkin := calendar.MustParse("2026-10-20").AddDays(i % 3)
			req := request(checkin.String(), "2026-10-23")
			id, err := svc.Create(context.Background(), req)
			results <- createResult{Email: req.Email, ExternalID: id, Error: err}
		}(i)
	}
	wg.Wait()
	close(results)

	// Every requested stay occupies 2026-10-22 and 2026-10-23.
	winners := 0
	for r := range results {
		if r.Error == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, r.Error, model.ErrNoAvailability)
	}
	assert.Equal(t, 1, winners)
}

func TestConcurrentDisjointCreatesAllSucceed(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checkin := calendar.MustParse("2026-10-16").AddDays(i * 3)
			_, errs[i] = svc.Create(context.Background(), request(checkin.String(), checkin.AddDays(1).String()))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestFindAvailableDatesDefaults(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	create(t, svc, "2026-10-20", "2026-10-22")

	free, err := svc.FindAvailableDates(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, free)
	assert.Equal(t, "2026-10-16", free[0].String())
	assert.Equal(t, "2026-11-15", free[len(free)-1].String())
	assert.Len(t, free, 31-3)
	for _, d := range free {
		assert.False(t, d.String() >= "2026-10-20" && d.String() <= "2026-10-22", d.String())
	}
}

func TestFindAvailableDatesRejectsBadWindow(t *testing.T) {
	svc, _ := newTestService(t, nil, time.Second)
	start := calendar.MustParse("2026-10-25")
	end := calendar.MustParse("2026-10-20")
	_, err := svc.FindAvailableDates(context.Background(), &start, &end)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	past := calendar.FromTime(today)
	_, err = svc.FindAvailableDates(context.Background(), &past, nil)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}
