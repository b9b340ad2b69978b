package outbox

import "context"

// Context is the execution context passed through the delivery pipeline.
// It is a plain alias for context.Context; no scheduler-specific values
// are smuggled through it.
type Context = context.Context
