// Package queue implements the single delayed task queue the scheduler
// hands per-recipient delivery work through: a Redis-backed sorted-set
// pipeline (delayed → ready → in-flight → completed/failed) under a
// fixed namespace and task-id scheme that downstream tooling depends
// on (see [Namespace] and [TaskID]).
//
// [TaskQueue] is the contract shared by the scheduler (producer, via
// Enqueue) and the delivery worker pool (consumer, via Reserve/Ack/
// Reschedule/Fail/Heartbeat/ReapStale). [RedisQueue] is the only
// production implementation.
package queue
