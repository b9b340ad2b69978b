package mail

import (
	"context"
	"fmt"
	"sync/atomic"

	gomail "gopkg.in/gomail.v2"
)

// SMTPSender sends mail through raw SMTP credentials backed by
// SenderAccount rows, for self-hosted or development use where a
// dedicated AWS account isn't available. When more than one active
// account is configured, sends round-robin across them.
type SMTPSender struct {
	accounts AccountStore
	cursor   atomic.Uint64
}

// NewSMTPSender creates an SMTPSender backed by the given account store.
func NewSMTPSender(accounts AccountStore) *SMTPSender {
	return &SMTPSender{accounts: accounts}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, recipient, subject, body string) (Result, error) {
	accounts, err := s.accounts.ListActiveSenderAccounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("mail: list sender accounts: %w", err)
	}
	if len(accounts) == 0 {
		return Result{}, fmt.Errorf("mail: no active sender account configured")
	}

	account := accounts[s.cursor.Add(1)%uint64(len(accounts))]

	m := gomail.NewMessage()
	m.SetHeader("From", account.Email)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	dialer := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.Email, account.Password)

	if err := dialer.DialAndSend(m); err != nil {
		return Result{}, fmt.Errorf("mail: smtp send via %s: %w", account.Email, err)
	}

	return Result{MessageID: account.Email}, nil
}
