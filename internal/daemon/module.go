package daemon

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/index"
	"github.com/matheus3301/wppdesk/internal/lock"
	"github.com/matheus3301/wppdesk/internal/logging"
	"github.com/matheus3301/wppdesk/internal/media"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/session"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/store"
	intsync "github.com/matheus3301/wppdesk/internal/sync"
	"github.com/matheus3301/wppdesk/internal/wa"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	Debug       bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLayout,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideIndex,
			provideAdapter,
			provideLibrary,
			provideTranscriber,
			provideEnricher,
			provideSyncEngine,
			provideSender,
			provideSessionService,
			provideSyncService,
			provideChatService,
			provideMessageService,
			provideGateway,
			NewServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Invoke(registerLifecycle),
	)
}

// loadEnv reads .env files from the data directory and the working directory. Variables
// already set in the environment win.
func loadEnv() error {
	for _, path := range []string{filepath.Join(session.BaseDir(), ".env"), ".env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func provideConfig() (*config.Config, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLayout(p Params) (session.Layout, error) {
	layout := session.For(p.SessionName)
	return layout, layout.EnsureDirs()
}

func provideLogger(p Params, layout session.Layout) (*zap.Logger, error) {
	return logging.New(layout.LogPath(), p.SessionName, p.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(layout session.Layout, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("path", layout.LockPath()))
	l, err := lock.Acquire(layout.LockPath())
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so no second daemon can touch the JSON files.
func provideStore(layout session.Layout, _ *lock.Lock, logger *zap.Logger) (*store.Store, error) {
	st, err := store.Open(layout.Root)
	if err != nil {
		return nil, err
	}
	counts, err := st.Counts()
	if err != nil {
		return nil, err
	}
	logger.Info("store initialized",
		zap.String("dir", layout.Root),
		zap.Int("chats", counts.Chats),
		zap.Int("contacts", counts.Contacts),
		zap.Int("messages", counts.Messages),
	)
	return st, nil
}

func provideIndex(layout session.Layout, st *store.Store, logger *zap.Logger) (*index.DB, error) {
	db, err := index.Open(layout.IndexDB())
	if err != nil {
		return nil, err
	}
	mig, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if !mig.Stale() {
		logger.Info("index schema up to date", zap.Uint("version", mig.To))
		return db, nil
	}
	logger.Info("index schema changed, rebuilding", zap.Uint("from", mig.From), zap.Uint("to", mig.To))
	msgs, err := st.LoadMessages()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	n, err := db.Rebuild(context.Background(), msgs)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("index rebuilt", zap.Int("messages", n))
	return db, nil
}

func provideAdapter(layout session.Layout, _ *lock.Lock, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), layout, logger)
}

func provideLibrary(layout session.Layout) (*media.Library, error) {
	return media.NewLibrary(layout.AudioDir())
}

func provideTranscriber(cfg *config.Config, logger *zap.Logger) media.Transcriber {
	t := cfg.Transcription
	key := t.APIKey()
	if key == "" {
		logger.Warn("transcription disabled, no API key", zap.String("env", t.APIKeyEnv))
		return media.Disabled{}
	}
	logger.Info("transcription enabled", zap.String("model", t.Model), zap.String("language", t.Language))
	return media.NewOpenAI(key, t.BaseURL, t.Model, t.Language)
}

func provideEnricher(lib *media.Library, adapter *wa.Adapter, tr media.Transcriber, cfg *config.Config, logger *zap.Logger) *media.Enricher {
	return media.NewEnricher(lib, adapter, tr, cfg.Sync.EnrichWorkers, logger.Named("media"))
}

func provideSyncEngine(st *store.Store, enricher *media.Enricher, idx *index.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(st, enricher, idx, b, cfg.Sync, logger.Named("sync"))
}

func provideSender(adapter *wa.Adapter, engine *intsync.Engine, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(adapter, engine, b, logger.Named("outbox"))
}

func provideSessionService(p Params, m *status.Machine, adapter *wa.Adapter, st *store.Store, engine *intsync.Engine, idx *index.DB, b *bus.Bus, logger *zap.Logger) *api.SessionService {
	return api.NewSessionService(p.SessionName, m, adapter, st, engine, idx, b, logger)
}

func provideSyncService(st *store.Store, b *bus.Bus, logger *zap.Logger) *api.SyncService {
	return api.NewSyncService(st, b, logger)
}

func provideChatService(engine *intsync.Engine) *api.ChatService {
	return api.NewChatService(engine)
}

func provideMessageService(sender *outbox.Sender, engine *intsync.Engine, idx *index.DB) *api.MessageService {
	return api.NewMessageService(sender, engine, idx)
}

func provideGateway(cfg *config.Config, lib *media.Library, b *bus.Bus, syncSvc *api.SyncService, chatSvc *api.ChatService, msgSvc *api.MessageService, logger *zap.Logger) *api.Gateway {
	return api.NewGateway(lib, b, syncSvc, chatSvc, msgSvc, cfg.HTTP.AllowedOrigins, logger.Named("http"))
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, srv *Server, gw *api.Gateway, lk *lock.Lock, idx *index.DB, adapter *wa.Adapter, engine *intsync.Engine, sender *outbox.Sender, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start sync engine (subscribes to wa.* bus events).
			engine.Start(context.Background())

			handler := wa.NewEventHandler(b, machine, adapter, logger.Named("wa"))
			if cfg.QR.PrintTerminal {
				handler.PrintQRTo(os.Stderr)
			}
			adapter.AddEventHandler(handler.Handle)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if cfg.HTTP.Listen != "" {
				if err := gw.Start(cfg.HTTP.Listen); err != nil {
					return err
				}
			}

			sender.Start(context.Background())

			// Without credentials Connect starts QR pairing.
			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
			} else {
				logger.Info("no credentials found, waiting for QR pairing")
			}
			go func() {
				if err := adapter.Connect(context.Background()); err != nil {
					logger.Error("connect failed", zap.Error(err))
					_ = machine.Transition(status.Error)
					b.Publish(bus.NewEvent(bus.KindError, model.Notice{Message: "connect failed: " + err.Error()}))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			engine.Stop()
			if err := adapter.Close(); err != nil {
				logger.Warn("error closing whatsapp client", zap.Error(err))
			}
			if err := gw.Stop(ctx); err != nil {
				logger.Warn("error stopping http gateway", zap.Error(err))
			}
			srv.Stop(ctx)
			if err := idx.Close(); err != nil {
				logger.Warn("error closing index", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
