package measure

import "errors"

var (
	// ErrInvalidArgument marks programmer errors such as a non-positive radius.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPersistence marks storage read or write failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrGeolocationUnavailable marks a missing or failed location source.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
)
