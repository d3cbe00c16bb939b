package api

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/index"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/store"
	intsync "github.com/matheus3301/wppdesk/internal/sync"
	"github.com/matheus3301/wppdesk/internal/wa"
)

type fakeAccount struct {
	loggedIn  bool
	connected int
	loggedOut bool
	reset     bool
}

func (f *fakeAccount) IsLoggedIn() bool    { return f.loggedIn }
func (f *fakeAccount) PhoneNumber() string { return "5511999999999" }
func (f *fakeAccount) Connect(context.Context) error {
	f.connected++
	return nil
}
func (f *fakeAccount) Logout(context.Context) error {
	if !f.loggedIn {
		return wa.ErrNotConnected
	}
	f.loggedOut = true
	return nil
}
func (f *fakeAccount) ResetAuth(context.Context) error {
	f.reset = true
	return nil
}

type fakeSender struct {
	engine *intsync.Engine
}

func (f *fakeSender) Send(ctx context.Context, to, text string) (model.Message, error) {
	msg := model.TextMessage(to+"@s.whatsapp.net", "srv-1", true, 1700000000, text)
	_, err := f.engine.RecordSent(ctx, msg)
	return msg, err
}

type fakeSearcher struct{}

func (fakeSearcher) Search(_ context.Context, query, chatID string, _ int) ([]index.Hit, error) {
	return []index.Hit{{ChatID: "A@x", MsgID: "m1", Snippet: "<<" + query + ">>"}}, nil
}

type testEnv struct {
	client  *Client
	bus     *bus.Bus
	machine *status.Machine
	engine  *intsync.Engine
	account *fakeAccount
	store   *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	m := status.NewMachine(b)
	logger := zap.NewNop()
	engine := intsync.NewEngine(st, nil, nil, b, config.Default().Sync, logger)
	account := &fakeAccount{loggedIn: true}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv,
		NewSessionService("test", m, account, st, engine, nil, b, logger),
		NewSyncService(st, b, logger),
		NewChatService(engine),
		NewMessageService(&fakeSender{engine: engine}, engine, fakeSearcher{}),
	)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(conn)
	t.Cleanup(func() { _ = client.Close() })

	return &testEnv{client: client, bus: b, machine: m, engine: engine, account: account, store: st}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func seed(t *testing.T, env *testEnv) {
	t.Helper()
	err := env.engine.IngestHistory(context.Background(), wa.HistorySnapshot{
		Chats:    []model.Chat{{ID: "A@x", Name: "Alice"}, {ID: "B@x", Name: "Bob"}},
		Contacts: []model.Contact{{ID: "A@x", Name: "Alice"}},
		Messages: []model.Message{
			model.TextMessage("A@x", "m1", false, 1000, "hi"),
			model.TextMessage("B@x", "b1", false, 1100, "hey"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	resp, err := env.client.Status(testCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Session != "test" || resp.State != string(status.Booting) {
		t.Errorf("status = %+v", resp)
	}
	if resp.Chats != 2 || resp.Contacts != 1 || resp.Messages != 2 {
		t.Errorf("counts = %d/%d/%d, want 2/1/2", resp.Chats, resp.Contacts, resp.Messages)
	}
	if !resp.LoggedIn || resp.PhoneNumber == "" {
		t.Errorf("account = %+v", resp)
	}
	if resp.Sync.HistoryBatches != 1 {
		t.Errorf("history batches = %d, want 1", resp.Sync.HistoryBatches)
	}
}

func TestGetSnapshotForChat(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	snap, err := env.client.Snapshot(testCtx(t), "A@x")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Chats) != 2 {
		t.Errorf("chats = %d, want 2", len(snap.Chats))
	}
	if len(snap.Messages) != 1 || len(snap.Messages["A@x"]) != 1 {
		t.Errorf("messages = %+v, want only A@x", snap.Messages)
	}
}

func TestConnectAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx(t)

	if _, err := env.client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if env.account.connected != 1 || env.machine.Current() != status.Connecting {
		t.Errorf("connected = %d, state = %s", env.account.connected, env.machine.Current())
	}

	if err := env.machine.Transition(status.Open); err != nil {
		t.Fatal(err)
	}
	ack, err := env.client.Logout(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ack.Success || !env.account.loggedOut || !env.account.reset {
		t.Errorf("ack = %+v, account = %+v", ack, env.account)
	}
	if env.machine.Current() != status.LoggedOut {
		t.Errorf("state = %s, want LOGGED_OUT", env.machine.Current())
	}
}

func TestLogoutWhenDisconnected(t *testing.T) {
	env := newTestEnv(t)
	env.account.loggedIn = false

	_, err := env.client.Logout(testCtx(t))
	if got := grpcstatus.Code(err); got != codes.Unavailable {
		t.Errorf("code = %s, want Unavailable", got)
	}
}

func TestSetChatFlags(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)
	ctx := testCtx(t)

	tag := "family"
	chat, err := env.client.SetChatFlags(ctx, "A@x", model.ChatFlags{Tag: &tag, Unread: model.Flag(true)})
	if err != nil {
		t.Fatal(err)
	}
	if chat.Tag != "family" || !chat.Unread() {
		t.Errorf("chat = %+v", chat)
	}

	_, err = env.client.SetChatFlags(ctx, "nobody@x", model.ChatFlags{Tag: &tag})
	if got := grpcstatus.Code(err); got != codes.NotFound {
		t.Errorf("code = %s, want NotFound", got)
	}
	_, err = env.client.SetChatFlags(ctx, "A@x", model.ChatFlags{})
	if got := grpcstatus.Code(err); got != codes.InvalidArgument {
		t.Errorf("code = %s, want InvalidArgument", got)
	}
}

func TestSendText(t *testing.T) {
	env := newTestEnv(t)

	msg, err := env.client.SendText(testCtx(t), "5551", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text() != "hello" || !msg.Key.FromMe {
		t.Errorf("message = %+v", msg)
	}
	if _, err := env.store.Message("5551@s.whatsapp.net", "srv-1"); err != nil {
		t.Errorf("sent message not stored: %v", err)
	}
}

func TestTranscribeMissingMessage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.Transcribe(testCtx(t), "A@x", "nope")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx(t)

	resp, err := env.client.Search(ctx, "hola", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Snippet != "<<hola>>" {
		t.Errorf("hits = %+v", resp.Hits)
	}

	_, err = env.client.Search(ctx, "  ", "", 10)
	if got := grpcstatus.Code(err); got != codes.InvalidArgument {
		t.Errorf("code = %s, want InvalidArgument", got)
	}
}

func TestWatchEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *Envelope, 1)
	done := make(chan error, 1)
	go func() {
		done <- env.client.Watch(ctx, "", func(e *Envelope) error {
			got <- e
			return errors.New("stop")
		})
	}()

	// The subscription is set up asynchronously; keep publishing until it lands.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case e := <-got:
			if e.Kind != bus.KindError {
				t.Errorf("kind = %q, want %s", e.Kind, bus.KindError)
			}
			var n model.Notice
			if err := e.Decode(&n); err != nil || n.Message != "boom" {
				t.Errorf("payload = %s, err = %v", e.Payload, err)
			}
			if e.ID == "" {
				t.Error("envelope id is empty")
			}
			<-done
			return
		case <-ticker.C:
			env.bus.Publish(bus.NewEvent("wa.upsert", nil))
			env.bus.Publish(bus.NewEvent(bus.KindError, model.Notice{Message: "boom"}))
		case <-ctx.Done():
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(bus.NewEvent(bus.KindReady, nil))
	if err != nil {
		t.Fatal(err)
	}
	if env.Payload != nil {
		t.Errorf("payload = %s, want none", env.Payload)
	}
	var v map[string]any
	if err := env.Decode(&v); err != nil {
		t.Errorf("decode empty payload: %v", err)
	}
}

func TestExposed(t *testing.T) {
	tests := map[string]bool{
		"ui.messages":            true,
		"session.status_changed": true,
		"wa.upsert":              false,
		"":                       false,
	}
	for kind, want := range tests {
		if got := exposed(kind); got != want {
			t.Errorf("exposed(%q) = %v, want %v", kind, got, want)
		}
	}
}
