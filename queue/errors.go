package queue

import "errors"

// ErrTaskNotFound is returned when a task id has no corresponding
// durable record, typically because it was already acked or evicted by
// a retention sweep.
var ErrTaskNotFound = errors.New("queue: task not found")
