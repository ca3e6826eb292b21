package booking

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const dateLayout = "2006-01-02"

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Date is a calendar day serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

type Booking struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PackageID       uuid.UUID
	BookingDate     Date
	NumberOfPeople  int
	TotalAmount     int
	Status          string
	SpecialRequests *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// View is a booking joined with its package title.
type View struct {
	ID              uuid.UUID `json:"id"`
	PackageTitle    string    `json:"package_title"`
	BookingDate     Date      `json:"booking_date"`
	NumberOfPeople  int       `json:"number_of_people"`
	TotalAmount     int       `json:"total_amount"`
	Status          string    `json:"status"`
	SpecialRequests *string   `json:"special_requests"`
	CreatedAt       time.Time `json:"created_at"`
}

type AdminView struct {
	View
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

type CreateInput struct {
	PackageID       uuid.UUID
	BookingDate     Date
	NumberOfPeople  int
	SpecialRequests *string
}

type Created struct {
	Message     string    `json:"message"`
	BookingID   uuid.UUID `json:"booking_id"`
	TotalAmount int       `json:"total_amount"`
}
