package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/campaign"
	"github.com/garv190/outbox-email-project/delivery"
	"github.com/garv190/outbox-email-project/id"
	"github.com/garv190/outbox-email-project/mail"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Campaign Store tests
// ──────────────────────────────────────────────────

func newCampaign(userID id.UserID) *campaign.Campaign {
	return campaign.New(userID, "hello", "world", time.Now().UTC().Add(time.Minute), 2000, 50)
}

func TestCampaignCreateAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	userID := id.New()
	c := newCampaign(userID)

	if err := s.CreateCampaign(ctx, c); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCampaign(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Subject != c.Subject {
		t.Fatalf("subject = %q, want %q", got.Subject, c.Subject)
	}

	_, err = s.GetCampaign(ctx, id.New())
	if !errors.Is(err, outbox.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestCampaignListByUser(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	userA := id.New()
	userB := id.New()

	c1 := newCampaign(userA)
	c2 := newCampaign(userA)
	c3 := newCampaign(userB)

	for _, c := range []*campaign.Campaign{c1, c2, c3} {
		if err := s.CreateCampaign(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListCampaignsByUser(ctx, userA)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d campaigns, want 2", len(got))
	}
}

func TestCampaignUpdateStatus(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	c := newCampaign(id.New())
	if err := s.CreateCampaign(ctx, c); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateStatus(ctx, c.ID, campaign.StatusInProgress); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetCampaign(ctx, c.ID)
	if got.Status != campaign.StatusInProgress {
		t.Fatalf("status = %q, want %q", got.Status, campaign.StatusInProgress)
	}

	if err := s.UpdateStatus(ctx, id.New(), campaign.StatusInProgress); !errors.Is(err, outbox.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Dispatch Store tests
// ──────────────────────────────────────────────────

func newDispatch(campaignID id.CampaignID, recipient string) *delivery.Dispatch {
	return delivery.New(campaignID, recipient, "hello", "world", time.Now().UTC().Add(time.Minute))
}

func TestDispatchCreateAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	campaignID := id.New()
	d := newDispatch(campaignID, "a@x.io")

	if err := s.CreateDispatch(ctx, d); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDispatch(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RecipientEmail != d.RecipientEmail {
		t.Fatalf("recipient = %q, want %q", got.RecipientEmail, d.RecipientEmail)
	}

	_, err = s.GetDispatch(ctx, id.New())
	if !errors.Is(err, outbox.ErrDispatchNotFound) {
		t.Fatalf("expected ErrDispatchNotFound, got %v", err)
	}
}

func TestDispatchCreateDuplicateRejected(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	campaignID := id.New()
	d1 := newDispatch(campaignID, "a@x.io")
	d2 := newDispatch(campaignID, "a@x.io") // same (campaign, recipient)

	if err := s.CreateDispatch(ctx, d1); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateDispatch(ctx, d2); !errors.Is(err, delivery.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDispatchUpdate(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	d := newDispatch(id.New(), "a@x.io")
	if err := s.CreateDispatch(ctx, d); err != nil {
		t.Fatal(err)
	}

	d.Status = delivery.StatusSending
	if err := s.UpdateDispatch(ctx, d); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetDispatch(ctx, d.ID)
	if got.Status != delivery.StatusSending {
		t.Fatalf("status = %q, want %q", got.Status, delivery.StatusSending)
	}

	missing := newDispatch(id.New(), "b@x.io")
	if err := s.UpdateDispatch(ctx, missing); !errors.Is(err, outbox.ErrDispatchNotFound) {
		t.Fatalf("expected ErrDispatchNotFound, got %v", err)
	}
}

func TestDispatchListByCampaign(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	campaignID := id.New()
	otherCampaign := id.New()

	for _, d := range []*delivery.Dispatch{
		newDispatch(campaignID, "a@x.io"),
		newDispatch(campaignID, "b@x.io"),
		newDispatch(otherCampaign, "c@x.io"),
	} {
		if err := s.CreateDispatch(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListByCampaign(ctx, campaignID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d dispatches, want 2", len(got))
	}
}

func TestDispatchListScheduledAndSentByUser(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	userID := id.New()
	c := newCampaign(userID)
	if err := s.CreateCampaign(ctx, c); err != nil {
		t.Fatal(err)
	}

	scheduled := newDispatch(c.ID, "a@x.io")
	sent := newDispatch(c.ID, "b@x.io")
	sent.Status = delivery.StatusSent
	failed := newDispatch(c.ID, "d@x.io")
	failed.Status = delivery.StatusFailed
	rateLimited := newDispatch(c.ID, "e@x.io")
	rateLimited.Status = delivery.StatusRateLimited

	for _, d := range []*delivery.Dispatch{scheduled, sent, failed, rateLimited} {
		if err := s.CreateDispatch(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	gotScheduled, err := s.ListScheduledByUser(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotScheduled) != 2 { // scheduled + rateLimited
		t.Fatalf("got %d scheduled, want 2", len(gotScheduled))
	}

	gotSent, err := s.ListSentByUser(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotSent) != 2 { // sent + failed
		t.Fatalf("got %d sent/failed, want 2", len(gotSent))
	}
}

// ──────────────────────────────────────────────────
// Sender Account Store tests
// ──────────────────────────────────────────────────

func newSenderAccount(email string, active bool) *mail.SenderAccount {
	return &mail.SenderAccount{
		ID:       id.New(),
		Email:    email,
		Password: "secret",
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		IsActive: active,
	}
}

func TestSenderAccountListActiveAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	active := newSenderAccount("active@x.io", true)
	inactive := newSenderAccount("inactive@x.io", false)

	s.PutSenderAccount(active)
	s.PutSenderAccount(inactive)

	got, err := s.ListActiveSenderAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d active accounts, want 1", len(got))
	}
	if got[0].Email != active.Email {
		t.Fatalf("email = %q, want %q", got[0].Email, active.Email)
	}

	gotByID, err := s.GetSenderAccount(ctx, active.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotByID.Email != active.Email {
		t.Fatalf("email = %q, want %q", gotByID.Email, active.Email)
	}

	_, err = s.GetSenderAccount(ctx, id.New())
	if !errors.Is(err, outbox.ErrSenderNotFound) {
		t.Fatalf("expected ErrSenderNotFound, got %v", err)
	}
}
