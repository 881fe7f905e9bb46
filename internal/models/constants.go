package models

const (
	RentalPending   = "PENDING"
	RentalConfirmed = "CONFIRMED"
	RentalActive    = "ACTIVE"
	RentalReturned  = "RETURNED"
	RentalCancelled = "CANCELLED"
)

// ActiveRentalStatuses hold dates on the calendar.
var ActiveRentalStatuses = []string{RentalPending, RentalConfirmed, RentalActive}

// AllRentalStatuses in lifecycle order.
var AllRentalStatuses = []string{RentalPending, RentalConfirmed, RentalActive, RentalReturned, RentalCancelled}

const (
	ActivityDressBooking = "DRESS_BOOKING"
	ActivityCancellation = "CANCELLATION"
	ActivityRentalStatus = "RENTAL_STATUS"
)

const (
	// GuestClientID is stored when a booking arrives without a user id.
	GuestClientID = "guest"

	DefaultDressSize  = "M"
	DefaultDressColor = "Oq"
	DefaultDressStyle = "CLASSIC"
	DefaultDressImage = "/dresses/download.jpg"

	// DateLayout is the wire and storage format of calendar dates.
	DateLayout = "2006-01-02"

	// DefaultAvailabilityDays is the length of the dress calendar.
	DefaultAvailabilityDays = 60

	// DefaultMaxBookingDays limits how far ahead a rental may start.
	DefaultMaxBookingDays = 365

	// CatalogCacheTTL время жизни кэша каталога в секундах
	CatalogCacheTTL = 5 * 60

	// BookingRateLimitAttempts booking attempts per client within the window
	BookingRateLimitAttempts = 10

	// BookingRateLimitWindow окно ограничения в секундах
	BookingRateLimitWindow = 60

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128
)
