package queue

const keyPrefix = Namespace + ":"

// taskKey returns the Hash key for a task entity: reachinboxScheduler:task:{id}
func taskKey(taskID string) string { return keyPrefix + "task:" + taskID }

// readyKey is the Sorted Set of tasks ordered by ready-at; membership
// includes both currently-ready and still-delayed tasks.
const readyKey = keyPrefix + "ready"

// inflightKey is the Sorted Set of reserved tasks, scored by lease
// expiry, so the reaper can find abandoned reservations.
const inflightKey = keyPrefix + "inflight"

// completedKey is the Sorted Set of acked tasks, scored by completion
// time, subject to the 24h/1000-item retention policy.
const completedKey = keyPrefix + "completed"

// failedKey is the Sorted Set of retry-exhausted tasks, scored by
// failure time, subject to the 7-day retention policy.
const failedKey = keyPrefix + "failed"
