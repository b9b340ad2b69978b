package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/delivery"
	"github.com/garv190/outbox-email-project/id"
)

const dispatchColumns = `
	id, campaign_id, recipient_email, subject, body, scheduled_time,
	sent_time, status, error_message, sender_id, sender_email,
	created_at, updated_at`

// CreateDispatch inserts a new dispatch row. Returns delivery.ErrDuplicate
// if (campaign_id, recipient_email) already exists.
func (s *Store) CreateDispatch(ctx context.Context, d *delivery.Dispatch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mail_dispatches (
			id, campaign_id, recipient_email, subject, body, scheduled_time,
			sent_time, status, error_message, sender_id, sender_email,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID.String(), d.CampaignID.String(), d.RecipientEmail, d.Subject, d.Body,
		d.ScheduledTime, d.SentTime, string(d.Status), d.ErrorMessage,
		senderIDString(d.SenderID), d.SenderEmail, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return delivery.ErrDuplicate
		}
		return fmt.Errorf("outbox/postgres: create dispatch: %w", err)
	}
	return nil
}

// GetDispatch retrieves a dispatch by ID.
func (s *Store) GetDispatch(ctx context.Context, dispatchID id.DispatchID) (*delivery.Dispatch, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+dispatchColumns+` FROM mail_dispatches WHERE id = $1`,
		dispatchID.String(),
	)

	d, err := scanDispatch(row)
	if err != nil {
		if isNoRows(err) {
			return nil, outbox.ErrDispatchNotFound
		}
		return nil, fmt.Errorf("outbox/postgres: get dispatch: %w", err)
	}
	return d, nil
}

// UpdateDispatch persists the full dispatch row.
func (s *Store) UpdateDispatch(ctx context.Context, d *delivery.Dispatch) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mail_dispatches SET
			scheduled_time = $2, sent_time = $3, status = $4,
			error_message = $5, sender_id = $6, sender_email = $7,
			updated_at = NOW()
		WHERE id = $1`,
		d.ID.String(), d.ScheduledTime, d.SentTime, string(d.Status),
		d.ErrorMessage, senderIDString(d.SenderID), d.SenderEmail,
	)
	if err != nil {
		return fmt.Errorf("outbox/postgres: update dispatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrDispatchNotFound
	}
	return nil
}

// ListByCampaign returns every dispatch belonging to campaignID.
func (s *Store) ListByCampaign(ctx context.Context, campaignID id.CampaignID) ([]*delivery.Dispatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dispatchColumns+` FROM mail_dispatches WHERE campaign_id = $1 ORDER BY created_at ASC`,
		campaignID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("outbox/postgres: list dispatches by campaign: %w", err)
	}
	defer rows.Close()

	return collectDispatches(rows)
}

// ListScheduledByUser returns dispatches in {PENDING, SCHEDULED,
// RATE_LIMITED} across every campaign owned by userID.
func (s *Store) ListScheduledByUser(ctx context.Context, userID id.UserID) ([]*delivery.Dispatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+joinedColumns()+`
		FROM mail_dispatches d
		JOIN mail_campaigns c ON c.id = d.campaign_id
		WHERE c.user_id = $1 AND d.status IN ('PENDING', 'SCHEDULED', 'RATE_LIMITED')
		ORDER BY d.scheduled_time ASC`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("outbox/postgres: list scheduled dispatches by user: %w", err)
	}
	defer rows.Close()

	return collectDispatches(rows)
}

// ListSentByUser returns dispatches in {SENT, FAILED} across every
// campaign owned by userID.
func (s *Store) ListSentByUser(ctx context.Context, userID id.UserID) ([]*delivery.Dispatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+joinedColumns()+`
		FROM mail_dispatches d
		JOIN mail_campaigns c ON c.id = d.campaign_id
		WHERE c.user_id = $1 AND d.status IN ('SENT', 'FAILED')
		ORDER BY d.updated_at DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("outbox/postgres: list sent dispatches by user: %w", err)
	}
	defer rows.Close()

	return collectDispatches(rows)
}

func joinedColumns() string {
	return `d.id, d.campaign_id, d.recipient_email, d.subject, d.body, d.scheduled_time,
		d.sent_time, d.status, d.error_message, d.sender_id, d.sender_email,
		d.created_at, d.updated_at`
}

func senderIDString(s *id.SenderID) string {
	if s == nil {
		return ""
	}
	return s.String()
}

func scanDispatch(row pgx.Row) (*delivery.Dispatch, error) {
	var (
		d         delivery.Dispatch
		idStr     string
		campStr   string
		statusStr string
		senderStr string
	)
	err := row.Scan(
		&idStr, &campStr, &d.RecipientEmail, &d.Subject, &d.Body, &d.ScheduledTime,
		&d.SentTime, &statusStr, &d.ErrorMessage, &senderStr, &d.SenderEmail,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = delivery.Status(statusStr)

	parsedID, parseErr := id.ParseDispatchID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("outbox/postgres: parse dispatch id %q: %w", idStr, parseErr)
	}
	d.ID = parsedID

	parsedCamp, campErr := id.ParseCampaignID(campStr)
	if campErr != nil {
		return nil, fmt.Errorf("outbox/postgres: parse campaign id %q: %w", campStr, campErr)
	}
	d.CampaignID = parsedCamp

	if senderStr != "" {
		if parsedSender, senderErr := id.ParseSenderID(senderStr); senderErr == nil {
			d.SenderID = &parsedSender
		}
	}

	return &d, nil
}

func collectDispatches(rows pgx.Rows) ([]*delivery.Dispatch, error) {
	var out []*delivery.Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, fmt.Errorf("outbox/postgres: scan dispatch row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox/postgres: iterate dispatch rows: %w", err)
	}
	return out, nil
}
