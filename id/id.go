// Package id defines the UUID-based identity type shared by every entity
// in the scheduler. IDs are opaque UUIDs — callers see only a string
// representation, never a prefix or internal encoding.
package id

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID is the primary identifier type for all scheduler entities.
// It wraps uuid.UUID and tracks validity so the zero value behaves like
// a proper "absent" ID rather than a parseable all-zero UUID.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner uuid.UUID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new random (v4) ID.
func New() ID {
	return ID{inner: uuid.New(), valid: true}
}

// Parse parses a UUID string into an ID. Returns an error if the string
// is not a valid UUID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: u, valid: true}, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// FromUUID wraps an existing uuid.UUID as an ID.
func FromUUID(u uuid.UUID) ID {
	return ID{inner: u, valid: true}
}

// String returns the canonical UUID string representation.
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil
		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil
			return nil
		}
		return i.UnmarshalText(v)
	case uuid.UUID:
		*i = FromUUID(v)
		return nil
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

// ──────────────────────────────────────────────────
// Per-entity aliases
// ──────────────────────────────────────────────────

// CampaignID identifies a Campaign.
type CampaignID = ID

// DispatchID identifies a Dispatch (one email to one recipient).
type DispatchID = ID

// UserID identifies the owning user of a campaign.
type UserID = ID

// SenderID identifies a SenderAccount.
type SenderID = ID

// WorkerID identifies a worker-pool process for heartbeat/reaper bookkeeping.
type WorkerID = ID

// NewCampaignID generates a new unique campaign ID.
func NewCampaignID() ID { return New() }

// NewDispatchID generates a new unique dispatch ID.
func NewDispatchID() ID { return New() }

// NewWorkerID generates a new unique worker ID.
func NewWorkerID() ID { return New() }

// ParseCampaignID parses a string into a CampaignID.
func ParseCampaignID(s string) (ID, error) { return Parse(s) }

// ParseDispatchID parses a string into a DispatchID.
func ParseDispatchID(s string) (ID, error) { return Parse(s) }

// ParseUserID parses a string into a UserID.
func ParseUserID(s string) (ID, error) { return Parse(s) }

// ParseSenderID parses a string into a SenderID.
func ParseSenderID(s string) (ID, error) { return Parse(s) }
