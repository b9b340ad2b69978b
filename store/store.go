// Package store defines the aggregate persistence interface. Each domain
// package (campaign, delivery, mail) defines its own store interface;
// the composite Store composes them all. Backends: Postgres and Memory.
package store

import (
	"context"

	"github.com/garv190/outbox-email-project/campaign"
	"github.com/garv190/outbox-email-project/delivery"
	"github.com/garv190/outbox-email-project/mail"
)

// Store is the aggregate persistence interface.
// Each domain store is a composable interface. A single backend
// (postgres, memory) implements all of them.
type Store interface {
	campaign.Store
	delivery.Store
	mail.AccountStore

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
