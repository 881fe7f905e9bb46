package service

import "errors"

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrTooManyBookings = errors.New("too many booking attempts, try again later")
)
