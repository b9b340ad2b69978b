// Package memory provides a fully in-memory implementation of
// store.Store, safe for concurrent access. Intended for unit testing
// and development, adapted from the same mutex-guarded map shape the
// reference postgres store exercises.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/campaign"
	"github.com/garv190/outbox-email-project/delivery"
	"github.com/garv190/outbox-email-project/id"
	"github.com/garv190/outbox-email-project/mail"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each domain.
var (
	_ campaign.Store    = (*Store)(nil)
	_ delivery.Store    = (*Store)(nil)
	_ mail.AccountStore = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	campaigns  map[string]*campaign.Campaign
	dispatches map[string]*delivery.Dispatch
	// dispatchKeys enforces the (campaign_id, recipient_email) uniqueness
	// invariant — the authoritative dedup mechanism.
	dispatchKeys map[string]struct{}
	senders      map[string]*mail.SenderAccount
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		campaigns:    make(map[string]*campaign.Campaign),
		dispatches:   make(map[string]*delivery.Dispatch),
		dispatchKeys: make(map[string]struct{}),
		senders:      make(map[string]*mail.SenderAccount),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Campaign Store
// ──────────────────────────────────────────────────

// CreateCampaign persists a new campaign row.
func (m *Store) CreateCampaign(_ context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.campaigns[c.ID.String()] = &cp
	return nil
}

// GetCampaign retrieves a campaign by ID.
func (m *Store) GetCampaign(_ context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[campaignID.String()]
	if !ok {
		return nil, outbox.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCampaignsByUser returns every campaign owned by userID.
func (m *Store) ListCampaignsByUser(_ context.Context, userID id.UserID) ([]*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*campaign.Campaign
	for _, c := range m.campaigns {
		if c.UserID == userID {
			cp := *c
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	return result, nil
}

// UpdateStatus transitions a campaign to a new status.
func (m *Store) UpdateStatus(_ context.Context, campaignID id.CampaignID, status campaign.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[campaignID.String()]
	if !ok {
		return outbox.ErrCampaignNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// Dispatch Store
// ──────────────────────────────────────────────────

func dispatchDedupeKey(campaignID id.CampaignID, recipient string) string {
	return campaignID.String() + ":" + recipient
}

// CreateDispatch inserts a new dispatch row, enforcing the
// (campaign_id, recipient_email) uniqueness invariant.
func (m *Store) CreateDispatch(_ context.Context, d *delivery.Dispatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dedupe := dispatchDedupeKey(d.CampaignID, d.RecipientEmail)
	if _, exists := m.dispatchKeys[dedupe]; exists {
		return delivery.ErrDuplicate
	}

	cp := *d
	m.dispatches[d.ID.String()] = &cp
	m.dispatchKeys[dedupe] = struct{}{}
	return nil
}

// GetDispatch retrieves a dispatch by ID.
func (m *Store) GetDispatch(_ context.Context, dispatchID id.DispatchID) (*delivery.Dispatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.dispatches[dispatchID.String()]
	if !ok {
		return nil, outbox.ErrDispatchNotFound
	}
	cp := *d
	return &cp, nil
}

// UpdateDispatch persists the full dispatch row.
func (m *Store) UpdateDispatch(_ context.Context, d *delivery.Dispatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := d.ID.String()
	if _, ok := m.dispatches[key]; !ok {
		return outbox.ErrDispatchNotFound
	}
	cp := *d
	cp.UpdatedAt = time.Now().UTC()
	m.dispatches[key] = &cp
	return nil
}

// ListByCampaign returns every dispatch belonging to campaignID.
func (m *Store) ListByCampaign(_ context.Context, campaignID id.CampaignID) ([]*delivery.Dispatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*delivery.Dispatch
	for _, d := range m.dispatches {
		if d.CampaignID == campaignID {
			cp := *d
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	return result, nil
}

// ListScheduledByUser returns dispatches in {PENDING, SCHEDULED,
// RATE_LIMITED} across every campaign owned by userID.
func (m *Store) ListScheduledByUser(ctx context.Context, userID id.UserID) ([]*delivery.Dispatch, error) {
	return m.filterByUserStatus(ctx, userID, delivery.StatusPending, delivery.StatusScheduled, delivery.StatusRateLimited)
}

// ListSentByUser returns dispatches in {SENT, FAILED} across every
// campaign owned by userID.
func (m *Store) ListSentByUser(ctx context.Context, userID id.UserID) ([]*delivery.Dispatch, error) {
	return m.filterByUserStatus(ctx, userID, delivery.StatusSent, delivery.StatusFailed)
}

func (m *Store) filterByUserStatus(_ context.Context, userID id.UserID, statuses ...delivery.Status) ([]*delivery.Dispatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[delivery.Status]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}

	campaignsOwned := make(map[string]struct{})
	for _, c := range m.campaigns {
		if c.UserID == userID {
			campaignsOwned[c.ID.String()] = struct{}{}
		}
	}

	var result []*delivery.Dispatch
	for _, d := range m.dispatches {
		if _, ok := want[d.Status]; !ok {
			continue
		}
		if _, owned := campaignsOwned[d.CampaignID.String()]; !owned {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].ScheduledTime.Before(result[k].ScheduledTime)
	})

	return result, nil
}

// ──────────────────────────────────────────────────
// Sender Account Store
// ──────────────────────────────────────────────────

// PutSenderAccount is a test-only helper to seed sender accounts; the
// production schema manages this table out of band from this package.
func (m *Store) PutSenderAccount(a *mail.SenderAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.senders[a.ID.String()] = &cp
}

// ListActiveSenderAccounts returns every sender account with IsActive true.
func (m *Store) ListActiveSenderAccounts(_ context.Context) ([]*mail.SenderAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*mail.SenderAccount
	for _, a := range m.senders {
		if a.IsActive {
			cp := *a
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].Email < result[k].Email
	})

	return result, nil
}

// GetSenderAccount retrieves a sender account by ID.
func (m *Store) GetSenderAccount(_ context.Context, senderID id.SenderID) (*mail.SenderAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.senders[senderID.String()]
	if !ok {
		return nil, outbox.ErrSenderNotFound
	}
	cp := *a
	return &cp, nil
}
