package proc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/olympiad/sys"
)

var (
	ErrTicketingDisabled   = errors.New("ticketing is disabled")
	ErrTicketAlreadyOpen   = errors.New("ticket already open")
	ErrTicketNotFound      = errors.New("no open ticket")
	ErrTicketNotAuthorized = errors.New("not authorized to close this ticket")
	ErrProvisioningDenied  = errors.New("channel provisioning denied")
	ErrProvisioningFailed  = errors.New("channel provisioning failed")
)

// TicketRecord is an open ticket. Records are never mutated after creation
// except for ChannelID, which is filled in once when provisioning completes;
// ExpiresAt in particular is never extended.
type TicketRecord struct {
	UserID    snowflake.ID
	ChannelID snowflake.ID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TicketStore is the single registry of open tickets, keyed by requester.
// All mutation goes through the mutex; handlers and the sweeper run on
// separate goroutines.
type TicketStore struct {
	mu   sync.Mutex
	open map[snowflake.ID]*TicketRecord
}

func NewTicketStore() *TicketStore {
	return &TicketStore{open: make(map[snowflake.ID]*TicketRecord)}
}

func (s *TicketStore) Get(userID snowflake.ID) *TicketRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[userID]
}

// Put inserts a record for the user, failing with ErrTicketAlreadyOpen if one
// exists. Check and insert happen under one lock so two concurrent opens for
// the same user cannot both succeed.
func (s *TicketStore) Put(userID snowflake.ID, rec *TicketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[userID]; ok {
		return ErrTicketAlreadyOpen
	}
	s.open[userID] = rec
	return nil
}

// Remove deletes and returns the record for the user, or nil if there is
// none. Removing an absent key is a no-op, which is what makes the manual
// close handler and the sweeper race-safe against each other.
func (s *TicketStore) Remove(userID snowflake.ID) *TicketRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.open[userID]
	delete(s.open, userID)
	return rec
}

func (s *TicketStore) All() []*TicketRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]*TicketRecord, 0, len(s.open))
	for _, rec := range s.open {
		records = append(records, rec)
	}
	return records
}

func (s *TicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

func (s *TicketStore) setChannel(userID, channelID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.open[userID]; ok {
		rec.ChannelID = channelID
	}
}

// ChannelProvisioner creates and destroys the private channel backing a
// ticket. CreatePrivate errors must wrap ErrProvisioningDenied (missing
// authorization) or ErrProvisioningFailed (anything else); the manager
// reports them to the caller and never retries.
type ChannelProvisioner interface {
	CreatePrivate(ctx context.Context, guildID, userID snowflake.ID, displayName string) (snowflake.ID, error)
	Delete(ctx context.Context, channelID snowflake.ID, reason string) error
	Notify(ctx context.Context, channelID, userID snowflake.ID, expiresAt time.Time) error
}

// TicketManager owns the store and orchestrates open, manual close and
// expiry. The feature flag defaults to off at startup and is never persisted.
type TicketManager struct {
	store   *TicketStore
	prov    ChannelProvisioner
	now     func() time.Time
	ttl     atomic.Int64
	enabled atomic.Bool
}

func NewTicketManager(prov ChannelProvisioner, ttl time.Duration) *TicketManager {
	m := &TicketManager{
		store: NewTicketStore(),
		prov:  prov,
		now:   time.Now,
	}
	m.ttl.Store(int64(ttl))
	return m
}

func (m *TicketManager) Enabled() bool      { return m.enabled.Load() }
func (m *TicketManager) SetEnabled(on bool) { m.enabled.Store(on) }

// Toggle flips the feature flag and returns the new state.
func (m *TicketManager) Toggle() bool {
	for {
		old := m.enabled.Load()
		if m.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (m *TicketManager) TTL() time.Duration { return time.Duration(m.ttl.Load()) }

// SetTTL changes the TTL for tickets opened from now on. Already-open
// tickets keep their expiry.
func (m *TicketManager) SetTTL(d time.Duration) { m.ttl.Store(int64(d)) }

func (m *TicketManager) OpenCount() int { return m.store.Len() }

func (m *TicketManager) Ticket(userID snowflake.ID) *TicketRecord { return m.store.Get(userID) }

// Open reserves the ticket before its channel exists: the store insert
// decides membership first, then provisioning runs. A failed provisioning
// releases the reservation.
func (m *TicketManager) Open(ctx context.Context, guildID, userID snowflake.ID, displayName string) (snowflake.ID, error) {
	if !m.enabled.Load() {
		return 0, ErrTicketingDisabled
	}

	now := m.now()
	rec := &TicketRecord{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.TTL()),
	}
	if err := m.store.Put(userID, rec); err != nil {
		return 0, err
	}

	channelID, err := m.prov.CreatePrivate(ctx, guildID, userID, displayName)
	if err != nil {
		m.store.Remove(userID)
		return 0, err
	}
	m.store.setChannel(userID, channelID)

	// A failed welcome message does not fail the open; the ticket channel
	// exists and will still expire normally.
	if err := m.prov.Notify(ctx, channelID, userID, rec.ExpiresAt); err != nil {
		sys.LogTicket(sys.MsgTicketNotifyFail, channelID, err)
	}

	sys.LogTicket(sys.MsgTicketOpened, displayName, channelID, rec.ExpiresAt.UTC().Format(time.RFC3339))
	return channelID, nil
}

// Close closes the ticket of userID on behalf of actorID. Deletion errors
// are swallowed: a channel that fails to delete must not leave a phantom
// open ticket behind.
func (m *TicketManager) Close(ctx context.Context, userID, actorID snowflake.ID, actorIsAdmin bool) error {
	rec := m.store.Get(userID)
	if rec == nil {
		return ErrTicketNotFound
	}
	if actorID != userID && !actorIsAdmin {
		return ErrTicketNotAuthorized
	}

	if rec.ChannelID != 0 {
		if err := m.prov.Delete(ctx, rec.ChannelID, "Ticket closed"); err != nil {
			sys.LogTicket(sys.MsgTicketDeleteFail, rec.ChannelID, err)
		}
	}
	m.store.Remove(userID)

	sys.LogTicket(sys.MsgTicketClosed, userID, actorID)
	return nil
}

// Sweep reconciles every record past its expiry: delete the channel, remove
// the record. One record's deletion error never aborts the pass.
func (m *TicketManager) Sweep(ctx context.Context) (expired, failures int) {
	now := m.now()
	for _, rec := range m.store.All() {
		if rec.ExpiresAt.After(now) {
			continue
		}
		if rec.ChannelID != 0 {
			if err := m.prov.Delete(ctx, rec.ChannelID, "Ticket expired"); err != nil {
				failures++
				sys.LogTicket(sys.MsgTicketDeleteFail, rec.ChannelID, err)
			}
		}
		m.store.Remove(rec.UserID)
		expired++
	}
	return expired, failures
}
