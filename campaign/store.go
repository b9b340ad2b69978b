package campaign

import (
	"context"

	"github.com/garv190/outbox-email-project/id"
)

// Store is the persistence contract for campaigns.
type Store interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id id.CampaignID) (*Campaign, error)
	ListCampaignsByUser(ctx context.Context, userID id.UserID) ([]*Campaign, error)
	UpdateStatus(ctx context.Context, id id.CampaignID, status Status) error
}
