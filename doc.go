// Package outbox implements a persistent, rate-limited email-campaign
// scheduler. It accepts campaigns (one subject/body aimed at N recipients
// with a start time and per-email spacing), persists one dispatch record
// per recipient, schedules each dispatch as a delayed task, and executes
// tasks through a concurrent worker pool that enforces global and
// per-sender hourly throughput ceilings.
//
// # Quick Start
//
//	eng, err := engine.Build(ctx, pgStore, redisClient, outbox.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	if err := eng.Start(ctx); err != nil {
//	    return err
//	}
//
// # Architecture
//
// Seven components, leaves first: a durable KV (rate counters + task
// queue, both Redis-backed), a relational store (campaigns, dispatches,
// sender accounts), a rate limiter, a task queue, a scheduler (ingress),
// a delivery worker pool, and a status reporter.
//
// All entity IDs are opaque UUIDs.
package outbox
