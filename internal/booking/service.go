package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"travel-booking/internal/catalog"
	"travel-booking/internal/events"
	"travel-booking/internal/observability"
)

var (
	ErrPackageUnavailable = errors.New("package not found")
	ErrGroupTooLarge      = errors.New("number of people exceeds package maximum")
	ErrInvalidStatus      = errors.New("invalid booking status")
	ErrTotalTooLarge      = errors.New("booking total exceeds the supported amount")
)

type Store interface {
	Insert(ctx context.Context, b Booking) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]View, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (View, error)
	ListAll(ctx context.Context) ([]AdminView, error)
	CancelPending(ctx context.Context, id, userID uuid.UUID) (Booking, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (Booking, error)
}

// PackageLookup resolves bookable packages; catalog.Repository satisfies it.
type PackageLookup interface {
	GetActive(ctx context.Context, id uuid.UUID) (catalog.Package, error)
}

type Service struct {
	store     Store
	packages  PackageLookup
	publisher events.Publisher
	logger    *observability.Logger
	now       func() time.Time
}

func NewService(store Store, packages PackageLookup, publisher events.Publisher, logger *observability.Logger) *Service {
	return &Service{store: store, packages: packages, publisher: publisher, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (Created, error) {
	pkg, err := s.packages.GetActive(ctx, input.PackageID)
	if err != nil {
		if errors.Is(err, catalog.ErrPackageNotFound) {
			return Created{}, ErrPackageUnavailable
		}
		return Created{}, err
	}
	if pkg.MaxPeople > 0 && input.NumberOfPeople > pkg.MaxPeople {
		return Created{}, ErrGroupTooLarge
	}

	// total_amount is an INTEGER column.
	if pkg.Price > 0 && input.NumberOfPeople > math.MaxInt32/pkg.Price {
		return Created{}, ErrTotalTooLarge
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Created{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	b := Booking{
		ID:              id,
		UserID:          userID,
		PackageID:       pkg.ID,
		BookingDate:     input.BookingDate,
		NumberOfPeople:  input.NumberOfPeople,
		TotalAmount:     pkg.Price * input.NumberOfPeople,
		Status:          StatusPending,
		SpecialRequests: input.SpecialRequests,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.Insert(ctx, b); err != nil {
		return Created{}, err
	}

	s.publish(ctx, events.BookingCreated, b)

	return Created{Message: "booking created", BookingID: b.ID, TotalAmount: b.TotalAmount}, nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]View, error) {
	return s.store.ListForUser(ctx, userID)
}

func (s *Service) GetMine(ctx context.Context, id, userID uuid.UUID) (View, error) {
	return s.store.GetForUser(ctx, id, userID)
}

func (s *Service) CancelMine(ctx context.Context, id, userID uuid.UUID) error {
	b, err := s.store.CancelPending(ctx, id, userID)
	if err != nil {
		return err
	}

	s.publish(ctx, events.BookingCancelled, b)
	return nil
}

func (s *Service) ListAll(ctx context.Context) ([]AdminView, error) {
	return s.store.ListAll(ctx)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	b, err := s.store.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}

	s.publish(ctx, events.BookingStatusChanged, b)
	return nil
}

// publish never fails the request: the booking row is already committed.
func (s *Service) publish(ctx context.Context, eventType string, b Booking) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, events.BookingEvent{
		Type:        eventType,
		BookingID:   b.ID,
		UserID:      b.UserID,
		PackageID:   b.PackageID,
		Status:      b.Status,
		TotalAmount: b.TotalAmount,
		OccurredAt:  s.now().UTC(),
	})
	if err != nil {
		sentry.CaptureException(err)
		s.logger.Error("booking_event_publish_failed", map[string]any{
			"type":       eventType,
			"booking_id": b.ID.String(),
			"error":      err.Error(),
		})
	}
}
