package proc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type fakeProvisioner struct {
	mu        sync.Mutex
	nextID    snowflake.ID
	createErr error
	deleteErr map[snowflake.ID]error
	notifyErr error
	created   []snowflake.ID
	deleted   []snowflake.ID
	notified  []snowflake.ID
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{nextID: 1000, deleteErr: map[snowflake.ID]error{}}
}

func (p *fakeProvisioner) CreatePrivate(ctx context.Context, guildID, userID snowflake.ID, displayName string) (snowflake.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return 0, p.createErr
	}
	p.nextID++
	p.created = append(p.created, p.nextID)
	return p.nextID, nil
}

func (p *fakeProvisioner) Delete(ctx context.Context, channelID snowflake.ID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.deleteErr[channelID]; err != nil {
		return err
	}
	p.deleted = append(p.deleted, channelID)
	return nil
}

func (p *fakeProvisioner) Notify(ctx context.Context, channelID, userID snowflake.ID, expiresAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notified = append(p.notified, channelID)
	return p.notifyErr
}

func (p *fakeProvisioner) deleteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deleted)
}

// newTestManager returns an enabled manager with a controllable clock.
func newTestManager(prov ChannelProvisioner, ttl time.Duration, clock *time.Time) *TicketManager {
	m := NewTicketManager(prov, ttl)
	m.SetEnabled(true)
	if clock != nil {
		m.now = func() time.Time { return *clock }
	}
	return m
}

const (
	testGuild = snowflake.ID(1)
	alice     = snowflake.ID(100)
	bob       = snowflake.ID(200)
)

func TestOpenDisabledByDefault(t *testing.T) {
	m := NewTicketManager(newFakeProvisioner(), 48*time.Hour)

	if m.Enabled() {
		t.Fatal("ticketing should start disabled")
	}
	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); !errors.Is(err, ErrTicketingDisabled) {
		t.Fatalf("expected ErrTicketingDisabled, got %v", err)
	}
}

func TestOpenCloseLifecycle(t *testing.T) {
	prov := newFakeProvisioner()
	m := newTestManager(prov, 48*time.Hour, nil)

	channelID, err := m.Open(context.Background(), testGuild, alice, "alice")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if channelID == 0 {
		t.Fatal("expected a channel ID")
	}

	rec := m.Ticket(alice)
	if rec == nil {
		t.Fatal("expected an open ticket for alice")
	}
	if rec.ChannelID != channelID {
		t.Fatalf("record channel = %s, want %s", rec.ChannelID, channelID)
	}
	if want := rec.CreatedAt.Add(48 * time.Hour); !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %s, want %s", rec.ExpiresAt, want)
	}
	if len(prov.notified) != 1 {
		t.Fatalf("expected 1 welcome message, got %d", len(prov.notified))
	}

	if err := m.Close(context.Background(), alice, alice, false); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if m.Ticket(alice) != nil {
		t.Fatal("ticket should be gone after close")
	}
	if prov.deleteCount() != 1 {
		t.Fatalf("expected 1 channel deletion, got %d", prov.deleteCount())
	}

	// Closing again reports no ticket rather than failing loudly
	if err := m.Close(context.Background(), alice, alice, false); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}

	// The user can open a fresh ticket after closing
	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
}

func TestOpenWhileAlreadyOpen(t *testing.T) {
	m := newTestManager(newFakeProvisioner(), 48*time.Hour, nil)

	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); !errors.Is(err, ErrTicketAlreadyOpen) {
		t.Fatalf("expected ErrTicketAlreadyOpen, got %v", err)
	}
	if m.OpenCount() != 1 {
		t.Fatalf("open count = %d, want 1", m.OpenCount())
	}
}

func TestConcurrentOpensOnlyOneWins(t *testing.T) {
	m := newTestManager(newFakeProvisioner(), 48*time.Hour, nil)

	const attempts = 32
	var wg sync.WaitGroup
	var successes, alreadyOpen int64
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Open(context.Background(), testGuild, alice, "alice")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrTicketAlreadyOpen):
				alreadyOpen++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if alreadyOpen != attempts-1 {
		t.Fatalf("already-open rejections = %d, want %d", alreadyOpen, attempts-1)
	}
	if m.OpenCount() != 1 {
		t.Fatalf("open count = %d, want 1", m.OpenCount())
	}
}

func TestCloseAuthorization(t *testing.T) {
	prov := newFakeProvisioner()
	m := newTestManager(prov, 48*time.Hour, nil)

	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// A non-admin stranger cannot close alice's ticket
	if err := m.Close(context.Background(), alice, bob, false); !errors.Is(err, ErrTicketNotAuthorized) {
		t.Fatalf("expected ErrTicketNotAuthorized, got %v", err)
	}
	if m.Ticket(alice) == nil {
		t.Fatal("denied close must not remove the ticket")
	}
	if prov.deleteCount() != 0 {
		t.Fatal("denied close must not delete the channel")
	}

	// An admin can close anyone's ticket
	if err := m.Close(context.Background(), alice, bob, true); err != nil {
		t.Fatalf("admin close failed: %v", err)
	}
	if m.Ticket(alice) != nil {
		t.Fatal("ticket should be gone after admin close")
	}
}

func TestCloseSurvivesDeletionFailure(t *testing.T) {
	prov := newFakeProvisioner()
	m := newTestManager(prov, 48*time.Hour, nil)

	channelID, err := m.Open(context.Background(), testGuild, alice, "alice")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	prov.deleteErr[channelID] = errors.New("api exploded")

	// The close must still succeed: no phantom open ticket may linger
	if err := m.Close(context.Background(), alice, alice, false); err != nil {
		t.Fatalf("close returned %v, want nil", err)
	}
	if m.Ticket(alice) != nil {
		t.Fatal("record must be removed even when channel deletion fails")
	}
}

func TestOpenProvisioningFailureReleasesReservation(t *testing.T) {
	prov := newFakeProvisioner()
	prov.createErr = ErrProvisioningDenied
	m := newTestManager(prov, 48*time.Hour, nil)

	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); !errors.Is(err, ErrProvisioningDenied) {
		t.Fatalf("expected ErrProvisioningDenied, got %v", err)
	}
	if m.OpenCount() != 0 {
		t.Fatal("failed open must not leave a reservation behind")
	}

	// The user is not locked out by the failed attempt
	prov.createErr = nil
	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); err != nil {
		t.Fatalf("retry after failure should succeed, got %v", err)
	}
}

func TestNotifyFailureDoesNotFailOpen(t *testing.T) {
	prov := newFakeProvisioner()
	prov.notifyErr = errors.New("message too long")
	m := newTestManager(prov, 48*time.Hour, nil)

	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if m.Ticket(alice) == nil {
		t.Fatal("ticket should be open despite the failed welcome message")
	}
}

func TestSweepExpiresOnlyDueTickets(t *testing.T) {
	prov := newFakeProvisioner()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(prov, 48*time.Hour, &clock)

	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); err != nil {
		t.Fatalf("open alice failed: %v", err)
	}

	clock = clock.Add(24 * time.Hour)
	if _, err := m.Open(context.Background(), testGuild, bob, "bob"); err != nil {
		t.Fatalf("open bob failed: %v", err)
	}

	// Nothing is due yet
	if expired, failures := m.Sweep(context.Background()); expired != 0 || failures != 0 {
		t.Fatalf("sweep = (%d, %d), want (0, 0)", expired, failures)
	}

	// Exactly at alice's expiry instant the ticket counts as expired
	clock = clock.Add(24 * time.Hour)
	expired, failures := m.Sweep(context.Background())
	if expired != 1 || failures != 0 {
		t.Fatalf("sweep = (%d, %d), want (1, 0)", expired, failures)
	}
	if m.Ticket(alice) != nil {
		t.Fatal("alice's ticket should be expired")
	}
	if m.Ticket(bob) == nil {
		t.Fatal("bob's ticket should survive the sweep")
	}
}

func TestSweepTTLChangeSparesOpenTickets(t *testing.T) {
	prov := newFakeProvisioner()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(prov, 48*time.Hour, &clock)

	if _, err := m.Open(context.Background(), testGuild, alice, "alice"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Shortening the TTL must not re-schedule the already-open ticket
	m.SetTTL(time.Hour)
	clock = clock.Add(2 * time.Hour)
	if expired, _ := m.Sweep(context.Background()); expired != 0 {
		t.Fatalf("expired %d tickets, want 0", expired)
	}

	if _, err := m.Open(context.Background(), testGuild, bob, "bob"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	clock = clock.Add(time.Hour)
	if expired, _ := m.Sweep(context.Background()); expired != 1 {
		t.Fatalf("expired %d tickets, want 1 (the short-TTL one)", expired)
	}
	if m.Ticket(alice) == nil {
		t.Fatal("the 48h ticket should still be open")
	}
}

func TestSweepIsolatesDeletionFailures(t *testing.T) {
	prov := newFakeProvisioner()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(prov, time.Hour, &clock)

	aliceChannel, err := m.Open(context.Background(), testGuild, alice, "alice")
	if err != nil {
		t.Fatalf("open alice failed: %v", err)
	}
	bobChannel, err := m.Open(context.Background(), testGuild, bob, "bob")
	if err != nil {
		t.Fatalf("open bob failed: %v", err)
	}
	prov.deleteErr[aliceChannel] = errors.New("channel is being deleted")

	clock = clock.Add(2 * time.Hour)
	expired, failures := m.Sweep(context.Background())
	if expired != 2 {
		t.Fatalf("expired = %d, want 2", expired)
	}
	if failures != 1 {
		t.Fatalf("failures = %d, want 1", failures)
	}

	// Both records are gone, and bob's channel really was deleted
	if m.OpenCount() != 0 {
		t.Fatalf("open count = %d, want 0", m.OpenCount())
	}
	found := false
	for _, id := range prov.deleted {
		if id == bobChannel {
			found = true
		}
	}
	if !found {
		t.Fatal("bob's channel should have been deleted despite alice's failure")
	}
}

func TestCloseBeforeProvisioningCompletes(t *testing.T) {
	prov := newFakeProvisioner()
	m := newTestManager(prov, 48*time.Hour, nil)

	// Simulate the reservation window: record exists, channel not yet filled in
	rec := &TicketRecord{UserID: alice, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := m.store.Put(alice, rec); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if err := m.Close(context.Background(), alice, alice, false); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if prov.deleteCount() != 0 {
		t.Fatal("no channel existed, nothing should be deleted")
	}
}

func TestToggle(t *testing.T) {
	m := NewTicketManager(newFakeProvisioner(), 48*time.Hour)

	if on := m.Toggle(); !on {
		t.Fatal("first toggle should enable")
	}
	if on := m.Toggle(); on {
		t.Fatal("second toggle should disable")
	}
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	s := NewTicketStore()
	rec := &TicketRecord{UserID: alice}
	if err := s.Put(alice, rec); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if got := s.Remove(alice); got != rec {
		t.Fatal("first remove should return the record")
	}
	if got := s.Remove(alice); got != nil {
		t.Fatal("second remove should return nil")
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0", s.Len())
	}
}
