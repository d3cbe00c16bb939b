package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/store"
	intsync "github.com/matheus3301/wppdesk/internal/sync"
)

// Account is the part of the WhatsApp adapter the session service drives.
type Account interface {
	IsLoggedIn() bool
	PhoneNumber() string
	Connect(ctx context.Context) error
	Logout(ctx context.Context) error
	ResetAuth(ctx context.Context) error
}

// StatsSource reports sync engine counters.
type StatsSource interface {
	Stats() intsync.Stats
}

// Counter reports how many messages are searchable.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// SessionService implements SessionServer.
type SessionService struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	account     Account
	store       *store.Store
	stats       StatsSource
	index       Counter
	bus         *bus.Bus
	logger      *zap.Logger
}

// NewSessionService creates a new session service. stats and index may be nil.
func NewSessionService(sessionName string, machine *status.Machine, account Account, st *store.Store, stats StatsSource, index Counter, b *bus.Bus, logger *zap.Logger) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		account:     account,
		store:       st,
		stats:       stats,
		index:       index,
		bus:         b,
		logger:      logger,
	}
}

func (s *SessionService) GetStatus(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Session:    s.sessionName,
		State:      string(s.machine.Current()),
		StateSince: s.machine.Since(),
		UptimeMs:   time.Since(s.startedAt).Milliseconds(),
	}
	if s.account != nil {
		resp.PhoneNumber = s.account.PhoneNumber()
		resp.LoggedIn = s.account.IsLoggedIn()
	}
	if s.store != nil {
		counts, err := s.store.Counts()
		if err != nil {
			return nil, toStatus("count store", err)
		}
		resp.Chats, resp.Contacts, resp.Messages = counts.Chats, counts.Contacts, counts.Messages
	}
	if s.index != nil {
		if n, err := s.index.Count(ctx); err == nil {
			resp.Indexed = n
		}
	}
	if s.stats != nil {
		resp.Sync = s.stats.Stats()
	}
	return resp, nil
}

// Connect starts the connection, or QR pairing when the session has no credentials.
func (s *SessionService) Connect(ctx context.Context, _ *ConnectRequest) (*Ack, error) {
	if s.machine.IsOpen() {
		return &Ack{Success: true, Message: "already connected"}, nil
	}
	if s.account.IsLoggedIn() {
		_ = s.machine.Transition(status.Connecting)
	}
	if err := s.account.Connect(ctx); err != nil {
		return nil, toStatus("connect", err)
	}
	if !s.account.IsLoggedIn() {
		return &Ack{Success: true, Message: "waiting for QR scan"}, nil
	}
	return &Ack{Success: true, Message: "connecting"}, nil
}

// Logout unlinks this device, wipes its credentials and leaves the session ready to
// pair again.
func (s *SessionService) Logout(ctx context.Context, _ *LogoutRequest) (*Ack, error) {
	if err := s.account.Logout(ctx); err != nil {
		return nil, toStatus("logout", err)
	}
	if err := s.machine.Transition(status.LoggedOut); err != nil {
		s.logger.Debug("state transition skipped", zap.Error(err))
	}
	s.bus.Publish(bus.NewEvent(bus.KindLoggedOut, model.Notice{Message: "logged out"}))
	if err := s.account.ResetAuth(ctx); err != nil {
		return nil, toStatus("reset credentials", err)
	}
	return &Ack{Success: true, Message: "logged out"}, nil
}
