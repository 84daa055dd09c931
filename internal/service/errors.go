package service

import "errors"

var (
	// ErrConfigurationNotFound means the seller has no assigned pricing
	// configuration and no usable sentinel default exists.
	ErrConfigurationNotFound = errors.New("pass configuration not found")

	// ErrInvalidGuestsOrDays means the requested guest or day count falls
	// outside the configured bounds.
	ErrInvalidGuestsOrDays = errors.New("guests or days outside configured bounds")

	// ErrIssuanceNotFound means no scheduled issuance exists for the given id.
	ErrIssuanceNotFound = errors.New("scheduled issuance not found")
)
