package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/campaign"
	"github.com/garv190/outbox-email-project/id"
)

// CreateCampaign persists a new campaign row.
func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mail_campaigns (
			id, user_id, subject, body, start_time, delay_between_ms,
			hourly_limit, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID.String(), c.UserID.String(), c.Subject, c.Body, c.StartTime,
		c.DelayBetweenMs, c.HourlyLimit, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("outbox/postgres: create campaign: %w", err)
	}
	return nil
}

// GetCampaign retrieves a campaign by ID.
func (s *Store) GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, subject, body, start_time, delay_between_ms,
			hourly_limit, status, created_at, updated_at
		FROM mail_campaigns WHERE id = $1`,
		campaignID.String(),
	)

	c, err := scanCampaign(row)
	if err != nil {
		if isNoRows(err) {
			return nil, outbox.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("outbox/postgres: get campaign: %w", err)
	}
	return c, nil
}

// ListCampaignsByUser returns every campaign owned by userID.
func (s *Store) ListCampaignsByUser(ctx context.Context, userID id.UserID) ([]*campaign.Campaign, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, subject, body, start_time, delay_between_ms,
			hourly_limit, status, created_at, updated_at
		FROM mail_campaigns WHERE user_id = $1 ORDER BY created_at DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("outbox/postgres: list campaigns by user: %w", err)
	}
	defer rows.Close()

	var out []*campaign.Campaign
	for rows.Next() {
		c, scanErr := scanCampaign(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("outbox/postgres: scan campaign row: %w", scanErr)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox/postgres: iterate campaign rows: %w", err)
	}
	return out, nil
}

// UpdateStatus transitions a campaign to a new status.
func (s *Store) UpdateStatus(ctx context.Context, campaignID id.CampaignID, status campaign.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mail_campaigns SET status = $2, updated_at = NOW() WHERE id = $1`,
		campaignID.String(), string(status),
	)
	if err != nil {
		return fmt.Errorf("outbox/postgres: update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrCampaignNotFound
	}
	return nil
}

func scanCampaign(row pgx.Row) (*campaign.Campaign, error) {
	var (
		c         campaign.Campaign
		idStr     string
		userStr   string
		statusStr string
	)
	err := row.Scan(
		&idStr, &userStr, &c.Subject, &c.Body, &c.StartTime, &c.DelayBetweenMs,
		&c.HourlyLimit, &statusStr, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = campaign.Status(statusStr)

	parsedID, parseErr := id.ParseCampaignID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("outbox/postgres: parse campaign id %q: %w", idStr, parseErr)
	}
	c.ID = parsedID

	parsedUser, userErr := id.ParseUserID(userStr)
	if userErr != nil {
		return nil, fmt.Errorf("outbox/postgres: parse user id %q: %w", userStr, userErr)
	}
	c.UserID = parsedUser

	return &c, nil
}
