package models

import "time"

type WeddingDress struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Price       int64     `yaml:"price" json:"price"`
	RentPrice   int64     `yaml:"rent_price" json:"rentPrice"`
	Image       string    `yaml:"image" json:"image"`
	Size        string    `yaml:"size" json:"size"`
	Color       string    `yaml:"color" json:"color"`
	Style       string    `yaml:"style" json:"style"`
	IsAvailable bool      `yaml:"is_available" json:"isAvailable"`
	TimesRented int64     `yaml:"times_rented" json:"timesRented"`
	CreatedAt   time.Time `yaml:"-" json:"createdAt"`
	UpdatedAt   time.Time `yaml:"-" json:"updatedAt"`
}

// DressFilter narrows the catalog listing. Empty fields do not filter.
type DressFilter struct {
	Style string
	Size  string
	// All includes dresses marked unavailable.
	All bool
}

// DressUpdate carries a partial admin update; nil fields are left unchanged.
type DressUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	RentPrice   *int64  `json:"rentPrice"`
	Image       *string `json:"image"`
	Size        *string `json:"size"`
	Color       *string `json:"color"`
	Style       *string `json:"style"`
	IsAvailable *bool   `json:"isAvailable"`
}

// DayAvailability is one day of a dress calendar.
type DayAvailability struct {
	Date        string `json:"date"`
	IsAvailable bool   `json:"isAvailable"`
}

// DressDetail is a dress with its booking calendar.
type DressDetail struct {
	Dress          *WeddingDress     `json:"dress"`
	Availability   []DayAvailability `json:"availability"`
	DepositPercent int               `json:"depositPercent"`
}
