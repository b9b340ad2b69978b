package mail

import (
	"context"

	"github.com/garv190/outbox-email-project/id"
)

// SenderAccount is a configured SMTP credential set. One of the active
// rows is chosen at send time by the SMTP transport.
type SenderAccount struct {
	ID       id.SenderID
	Email    string
	Password string
	SMTPHost string
	SMTPPort int
	IsActive bool
}

// AccountStore is the persistence contract for sender accounts.
type AccountStore interface {
	ListActiveSenderAccounts(ctx context.Context) ([]*SenderAccount, error)
	GetSenderAccount(ctx context.Context, id id.SenderID) (*SenderAccount, error)
}
