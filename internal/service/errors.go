package service

import "errors"

// ErrEventNotPurchasable is returned when a purchase targets an event that
// exists but is not in a sellable state (draft, cancelled or inactive).
var ErrEventNotPurchasable = errors.New("event not purchasable")

// ErrExternalService is returned when the payment provider is unreachable
// or answers with something unparseable. Callers should treat it as
// retryable and must not draw any conclusion about the payment outcome.
var ErrExternalService = errors.New("external service error")
