package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/id"
	"github.com/garv190/outbox-email-project/mail"
)

// ListActiveSenderAccounts returns every sender account with is_active = true.
func (s *Store) ListActiveSenderAccounts(ctx context.Context) ([]*mail.SenderAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, password, smtp_host, smtp_port, is_active
		FROM sender_accounts WHERE is_active = TRUE ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("outbox/postgres: list active sender accounts: %w", err)
	}
	defer rows.Close()

	var out []*mail.SenderAccount
	for rows.Next() {
		a, scanErr := scanSenderAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("outbox/postgres: scan sender account row: %w", scanErr)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox/postgres: iterate sender account rows: %w", err)
	}
	return out, nil
}

// GetSenderAccount retrieves a sender account by ID.
func (s *Store) GetSenderAccount(ctx context.Context, senderID id.SenderID) (*mail.SenderAccount, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password, smtp_host, smtp_port, is_active FROM sender_accounts WHERE id = $1`,
		senderID.String(),
	)

	a, err := scanSenderAccount(row)
	if err != nil {
		if isNoRows(err) {
			return nil, outbox.ErrSenderNotFound
		}
		return nil, fmt.Errorf("outbox/postgres: get sender account: %w", err)
	}
	return a, nil
}

func scanSenderAccount(row pgx.Row) (*mail.SenderAccount, error) {
	var (
		a     mail.SenderAccount
		idStr string
	)
	err := row.Scan(&idStr, &a.Email, &a.Password, &a.SMTPHost, &a.SMTPPort, &a.IsActive)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseSenderID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("outbox/postgres: parse sender id %q: %w", idStr, parseErr)
	}
	a.ID = parsedID

	return &a, nil
}
