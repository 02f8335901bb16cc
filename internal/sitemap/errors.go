package sitemap

import "errors"

var (
	// ErrConfig reports a setup problem detected before any file is written.
	ErrConfig = errors.New("sitemap: invalid configuration")

	// ErrInvalidPlan is returned by PlanBatches for inconsistent limits.
	ErrInvalidPlan = errors.New("sitemap: invalid batch plan")

	// ErrMissingIdentifier is returned when a record type has no identifier
	// accessor, or a record resolves to an empty identifier.
	ErrMissingIdentifier = errors.New("sitemap: record has no identifier")

	ErrAlreadyOpen  = errors.New("sitemap: document already open")
	ErrClosed       = errors.New("sitemap: writer is closed")
	ErrTagMismatch  = errors.New("sitemap: closing tag does not match open tag")
	ErrInvalidEntry = errors.New("sitemap: invalid entry")
)
