package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-booking/internal/auth"
	"travel-booking/internal/catalog"
	"travel-booking/internal/events"
	"travel-booking/internal/observability"
)

type memoryStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]Booking
	titles   map[uuid.UUID]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bookings: map[uuid.UUID]Booking{}, titles: map[uuid.UUID]string{}}
}

func (m *memoryStore) view(b Booking) View {
	return View{
		ID: b.ID, PackageTitle: m.titles[b.PackageID], BookingDate: b.BookingDate, NumberOfPeople: b.NumberOfPeople,
		TotalAmount: b.TotalAmount, Status: b.Status, SpecialRequests: b.SpecialRequests, CreatedAt: b.CreatedAt,
	}
}

func (m *memoryStore) Insert(_ context.Context, b Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *memoryStore) ListForUser(_ context.Context, userID uuid.UUID) ([]View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []View{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			views = append(views, m.view(b))
		}
	}
	return views, nil
}

func (m *memoryStore) GetForUser(_ context.Context, id, userID uuid.UUID) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.UserID != userID {
		return View{}, ErrBookingNotFound
	}
	return m.view(b), nil
}

func (m *memoryStore) ListAll(_ context.Context) ([]AdminView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []AdminView{}
	for _, b := range m.bookings {
		views = append(views, AdminView{View: m.view(b), UserName: "Test User", UserEmail: "user@example.com"})
	}
	return views, nil
}

func (m *memoryStore) CancelPending(_ context.Context, id, userID uuid.UUID) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.UserID != userID || b.Status != StatusPending {
		return Booking{}, ErrBookingNotFound
	}
	b.Status = StatusCancelled
	m.bookings[id] = b
	return b, nil
}

func (m *memoryStore) SetStatus(_ context.Context, id uuid.UUID, status string) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	b.Status = status
	m.bookings[id] = b
	return b, nil
}

type packageLookup map[uuid.UUID]catalog.Package

func (p packageLookup) GetActive(_ context.Context, id uuid.UUID) (catalog.Package, error) {
	pkg, ok := p[id]
	if !ok {
		return catalog.Package{}, catalog.ErrPackageNotFound
	}
	return pkg, nil
}

type recordingPublisher struct {
	events []events.BookingEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event events.BookingEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

type bookingFixture struct {
	store     *memoryStore
	service   *Service
	publisher *recordingPublisher
	pkg       catalog.Package
	mux       *http.ServeMux
}

func newBookingFixture() *bookingFixture {
	pkg := catalog.Package{ID: uuid.New(), Title: "Andaman Islands", Price: 15000, MaxPeople: 6}
	store := newMemoryStore()
	store.titles[pkg.ID] = pkg.Title
	publisher := &recordingPublisher{}

	service := NewService(store, packageLookup{pkg.ID: pkg}, publisher, observability.NewDiscardLogger())
	h := NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bookings", h.Create)
	mux.HandleFunc("GET /api/bookings", h.ListMine)
	mux.HandleFunc("GET /api/bookings/{id}", h.GetMine)
	mux.HandleFunc("PUT /api/bookings/{id}/cancel", h.CancelMine)
	mux.HandleFunc("GET /api/admin/bookings", h.ListAll)
	mux.HandleFunc("PUT /api/admin/bookings/{id}/status", h.UpdateStatus)

	return &bookingFixture{store: store, service: service, publisher: publisher, pkg: pkg, mux: mux}
}

func (f *bookingFixture) do(userID uuid.UUID, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != uuid.Nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *bookingFixture) book(t *testing.T, userID uuid.UUID, people int) Created {
	t.Helper()
	body := `{"package_id":"` + f.pkg.ID.String() + `","booking_date":"2025-12-24","number_of_people":` +
		strconv.Itoa(people) + `,"special_requests":" vegetarian meals "}`
	rec := f.do(userID, http.MethodPost, "/api/bookings", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Created
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created
}

func TestCreate_ComputesTotalAndStartsPending(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	userID := uuid.New()

	created := f.book(t, userID, 3)
	assert.Equal(t, 45000, created.TotalAmount)

	stored := f.store.bookings[created.BookingID]
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, userID, stored.UserID)
	assert.Equal(t, "2025-12-24", stored.BookingDate.String())
	require.NotNil(t, stored.SpecialRequests)
	assert.Equal(t, "vegetarian meals", *stored.SpecialRequests)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.BookingCreated, f.publisher.events[0].Type)
	assert.Equal(t, created.BookingID, f.publisher.events[0].BookingID)
}

func TestCreate_Rejections(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	userID := uuid.New()

	cases := map[string]struct {
		body string
		want int
	}{
		"unknown package": {`{"package_id":"` + uuid.NewString() + `","booking_date":"2025-12-24","number_of_people":1}`, http.StatusNotFound},
		"zero people":     {`{"package_id":"` + f.pkg.ID.String() + `","booking_date":"2025-12-24","number_of_people":0}`, http.StatusBadRequest},
		"bad date":        {`{"package_id":"` + f.pkg.ID.String() + `","booking_date":"24/12/2025","number_of_people":1}`, http.StatusBadRequest},
		"bad package id":  {`{"package_id":"abc","booking_date":"2025-12-24","number_of_people":1}`, http.StatusBadRequest},
		"too many people": {`{"package_id":"` + f.pkg.ID.String() + `","booking_date":"2025-12-24","number_of_people":7}`, http.StatusBadRequest},
		"not json":        {`{`, http.StatusBadRequest},
	}

	for name, tc := range cases {
		rec := f.do(userID, http.MethodPost, "/api/bookings", tc.body)
		assert.Equal(t, tc.want, rec.Code, name)
	}
	assert.Empty(t, f.store.bookings)
	assert.Empty(t, f.publisher.events)
}

func TestCreate_RejectsTotalBeyondColumnRange(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	pricey := catalog.Package{ID: uuid.New(), Title: "Private Island", Price: 1_500_000_000}
	f.service.packages = packageLookup{pricey.ID: pricey}

	rec := f.do(uuid.New(), http.MethodPost, "/api/bookings",
		`{"package_id":"`+pricey.ID.String()+`","booking_date":"2025-12-24","number_of_people":2}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.store.bookings)
}

func TestCreate_RequiresIdentity(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	rec := f.do(uuid.Nil, http.MethodPost, "/api/bookings", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreate_PublishFailureDoesNotFailBooking(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	f.publisher.err = errors.New("broker down")

	created := f.book(t, uuid.New(), 1)
	assert.Contains(t, f.store.bookings, created.BookingID)
}

func TestBookingsAreScopedToOwner(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	alice, bob := uuid.New(), uuid.New()
	created := f.book(t, alice, 2)

	rec := f.do(alice, http.MethodGet, "/api/bookings/"+created.BookingID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Andaman Islands", view["package_title"])
	assert.Equal(t, "2025-12-24", view["booking_date"])

	assert.Equal(t, http.StatusNotFound, f.do(bob, http.MethodGet, "/api/bookings/"+created.BookingID.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(bob, http.MethodGet, "/api/bookings/nope", "").Code)

	rec = f.do(bob, http.MethodGet, "/api/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCancel_OnlyPendingBookingsOfOwner(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	alice, bob := uuid.New(), uuid.New()
	created := f.book(t, alice, 1)
	path := "/api/bookings/" + created.BookingID.String() + "/cancel"

	assert.Equal(t, http.StatusNotFound, f.do(bob, http.MethodPut, path, "").Code)
	assert.Equal(t, http.StatusOK, f.do(alice, http.MethodPut, path, "").Code)
	assert.Equal(t, StatusCancelled, f.store.bookings[created.BookingID].Status)
	assert.Equal(t, http.StatusNotFound, f.do(alice, http.MethodPut, path, "").Code)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, events.BookingCancelled, f.publisher.events[1].Type)
}

func TestAdminUpdateStatus(t *testing.T) {
	t.Parallel()

	f := newBookingFixture()
	created := f.book(t, uuid.New(), 1)
	path := "/api/admin/bookings/" + created.BookingID.String() + "/status"

	assert.Equal(t, http.StatusBadRequest, f.do(uuid.Nil, http.MethodPut, path, `{"status":"shipped"}`).Code)
	assert.Equal(t, http.StatusOK, f.do(uuid.Nil, http.MethodPut, path, `{"status":"confirmed"}`).Code)
	assert.Equal(t, StatusConfirmed, f.store.bookings[created.BookingID].Status)
	assert.Equal(t, http.StatusNotFound,
		f.do(uuid.Nil, http.MethodPut, "/api/admin/bookings/"+uuid.NewString()+"/status", `{"status":"completed"}`).Code)

	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, events.BookingStatusChanged, last.Type)
	assert.Equal(t, StatusConfirmed, last.Status)

	rec := f.do(uuid.Nil, http.MethodGet, "/api/admin/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_email":"user@example.com"`)
}
