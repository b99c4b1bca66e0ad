// Package store owns all PostgreSQL access. Sentinel errors defined here
// let the service and API layers distinguish failure cases with errors.Is
// instead of matching on message strings.
package store

import "errors"

// ErrEventNotFound is returned when an event id does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when a ticket identifier does not exist.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrTransactionNotFound is returned when no ticket carries the given
// payment transaction identifier.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrInsufficientAvailability is returned when a confirmed sale would
// drive an event's available ticket count below zero.
var ErrInsufficientAvailability = errors.New("insufficient availability")

// ErrSlideNotFound is returned when a slide id does not exist.
var ErrSlideNotFound = errors.New("slide not found")
