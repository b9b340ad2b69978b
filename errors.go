package outbox

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("outbox: no store configured")
	ErrStoreClosed     = errors.New("outbox: store closed")
	ErrMigrationFailed = errors.New("outbox: migration failed")

	// Not found errors.
	ErrCampaignNotFound = errors.New("outbox: campaign not found")
	ErrDispatchNotFound = errors.New("outbox: dispatch not found")
	ErrSenderNotFound   = errors.New("outbox: sender account not found")

	// Conflict errors.
	ErrDuplicateDispatch = errors.New("outbox: duplicate dispatch")
	ErrNoNewDispatches   = errors.New("outbox: no new dispatches")

	// Validation errors.
	ErrValidation = errors.New("outbox: validation failed")

	// Control-flow outcomes (not true errors; see ratelimit package).
	ErrRateLimited = errors.New("outbox: rate limited")

	// State errors.
	ErrInvalidState = errors.New("outbox: invalid state transition")

	// Transport errors.
	ErrTransport = errors.New("outbox: transport error")
)
