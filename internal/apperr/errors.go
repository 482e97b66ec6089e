// Package apperr defines the core's error taxonomy (see the component
// design's error handling section), grounded on the teacher's flat
// fmt.Errorf sentinel style (internal/app/httpapi/errors.go).
package apperr

import "errors"

var (
	// ErrAuthTransport marks the identity endpoint being unreachable or
	// timing out. Retryable.
	ErrAuthTransport = errors.New("auth transport error")
	// ErrAuthRejected marks a non-2xx or malformed identity response, or a
	// local decode failure. Never cached.
	ErrAuthRejected = errors.New("auth rejected")
	// ErrAuthExpired marks a token whose exp claim has passed.
	ErrAuthExpired = errors.New("auth expired")
	// ErrAuthMissing marks a handshake with no bearer token in header or
	// query string.
	ErrAuthMissing = errors.New("auth missing")

	// ErrInventoryFull marks a slot-bounded inventory with no room for a
	// new item.
	ErrInventoryFull = errors.New("inventory full")
	// ErrInsufficientItems marks a removal request exceeding held quantity.
	ErrInsufficientItems = errors.New("insufficient items")

	// ErrHarvestNotFound marks a harvest request against an unknown object.
	ErrHarvestNotFound = errors.New("object not found")
	// ErrHarvestAlreadyHarvested marks a harvest request against an object
	// already harvested.
	ErrHarvestAlreadyHarvested = errors.New("already harvested")
	// ErrHarvestOutOfRange marks a harvest request beyond max_harvest_range
	// (the anti-cheat signal).
	ErrHarvestOutOfRange = errors.New("too far")
	// ErrHarvestUnknownEntity marks a harvest request from an unregistered
	// player entity.
	ErrHarvestUnknownEntity = errors.New("unknown entity")

	// ErrSessionFrameTooLarge marks an inbound frame exceeding the 1 MiB cap.
	ErrSessionFrameTooLarge = errors.New("session frame too large")
	// ErrSessionMalformed marks an inbound frame that failed to decode.
	ErrSessionMalformed = errors.New("session frame malformed")

	// ErrFatal marks an unrecoverable initialisation error (missing
	// required env var, port bind failure). The process exits non-zero.
	ErrFatal = errors.New("fatal initialisation error")
)
