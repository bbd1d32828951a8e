// Package sentinel defines infrastructure facts returned by stores.
//
// Stores wrap these with fmt.Errorf("...: %w", sentinel.ErrX) and services
// translate them into pkg/domain-errors codes. A store never decides whether a
// fact is a client error; that mapping belongs to the service.
//
//   - ErrNotFound: no row or key for the lookup
//   - ErrConflict: a uniqueness constraint or conditional update lost
//   - ErrExpired: a time-boxed record (OTP, session) is past its expiry
//   - ErrAlreadyUsed: a single-use record was already consumed
//   - ErrInvalidState: the row exists but its status forbids the change
//   - ErrUnavailable: a dependency (redis, assessor, broker) cannot be reached
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
