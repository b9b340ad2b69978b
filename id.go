package outbox

import "github.com/garv190/outbox-email-project/id"

// ID is the primary identifier type for all scheduler entities.
type ID = id.ID
