package models

import "time"

type Rental struct {
	ID            string    `json:"id"`
	DressID       string    `json:"dressId"`
	ClientID      string    `json:"clientId"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	TotalPrice    int64     `json:"totalPrice"`
	DepositAmount int64     `json:"depositAmount"`
	DepositPaid   bool      `json:"depositPaid"`
	RefundAmount  *int64    `json:"refundAmount"`
	Status        string    `json:"status"` // PENDING, CONFIRMED, ACTIVE, RETURNED, CANCELLED
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Version       int64     `json:"version"`
}

// IsActive reports whether the rental still holds its dates.
func (r *Rental) IsActive() bool {
	return IsActiveStatus(r.Status)
}

func IsActiveStatus(status string) bool {
	for _, s := range ActiveRentalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// RentalDress is the dress summary attached to admin listings.
type RentalDress struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	RentPrice int64  `json:"rentPrice"`
}

type RentalView struct {
	Rental
	Dress RentalDress `json:"dress"`
}

type RentalStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Active    int `json:"active"`
	Returned  int `json:"returned"`
	Cancelled int `json:"cancelled"`
}

// Add counts one rental with the given status.
func (s *RentalStats) Add(status string, n int) {
	s.Total += n
	switch status {
	case RentalPending:
		s.Pending += n
	case RentalConfirmed:
		s.Confirmed += n
	case RentalActive:
		s.Active += n
	case RentalReturned:
		s.Returned += n
	case RentalCancelled:
		s.Cancelled += n
	}
}

// RentalUpdate is an admin patch of a rental.
type RentalUpdate struct {
	ID          string `json:"id"`
	Status      string `json:"status,omitempty"`
	DepositPaid *bool  `json:"depositPaid,omitempty"`
}

// Quote is the priced result for a dress and date range.
type Quote struct {
	DressID       string    `json:"dressId"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	RentalDays    int       `json:"rentalDays"`
	TotalPrice    int64     `json:"totalPrice"`
	DepositAmount int64     `json:"depositAmount"`
	Available     bool      `json:"available"`
}

// Cancellation is the outcome of a cancel request.
type Cancellation struct {
	RentalID        string `json:"id"`
	RefundAmount    int64  `json:"refundAmount"`
	DaysUntilRental int    `json:"daysUntilRental"`
	Message         string `json:"message"`
}
