package api

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/store"
)

// SyncService implements SyncServer.
type SyncService struct {
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(st *store.Store, b *bus.Bus, logger *zap.Logger) *SyncService {
	return &SyncService{store: st, bus: b, logger: logger}
}

func (s *SyncService) GetSnapshot(_ context.Context, req *SnapshotRequest) (*model.Snapshot, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, toStatus("load snapshot", err)
	}
	if req.ChatID != "" {
		snap.Messages = map[string][]model.Message{req.ChatID: snap.Messages[req.ChatID]}
	}
	return &snap, nil
}

// WatchEvents streams renderer events until the client goes away. Only the "ui." and
// "session." namespaces are exposed; an empty prefix watches both.
func (s *SyncService) WatchEvents(req *WatchRequest, stream EventStream) error {
	prefix := req.Prefix
	if prefix != "" && !exposed(prefix) {
		prefix = bus.NamespaceUI
	}
	ch, unsub := s.bus.Subscribe(prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !exposed(evt.Kind) {
				continue
			}
			env, err := NewEnvelope(evt)
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func exposed(kind string) bool {
	return strings.HasPrefix(kind, bus.NamespaceUI) || strings.HasPrefix(kind, "session.")
}
