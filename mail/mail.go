// Package mail defines the MailSender capability injected into the
// delivery worker pool. The worker never holds a process-wide SMTP or
// API client; callers construct a Sender once at startup and pass it
// into the worker pool constructor.
package mail

import "context"

// Result is returned by a successful send.
type Result struct {
	// MessageID identifies the accepted send and is stored on the
	// dispatch row as SenderEmail: SESSender returns the SES message id,
	// SMTPSender the address of the sender account it used.
	MessageID string

	// PreviewURL is an optional out-of-band link to inspect a
	// test-SMTP-accepted message.
	PreviewURL string
}

// Sender is the injected transport capability a delivery worker calls
// exactly once per admitted send attempt.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) (Result, error)
}
