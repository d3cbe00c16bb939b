package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/media"
	"github.com/matheus3301/wppdesk/internal/model"
)

func newTestGateway(t *testing.T) (*httptest.Server, *testEnv, *media.Library) {
	t.Helper()
	env := newTestEnv(t)
	seed(t, env)

	lib, err := media.NewLibrary(filepath.Join(t.TempDir(), "audio"))
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop()
	g := NewGateway(lib, env.bus,
		NewSyncService(env.store, env.bus, logger),
		NewChatService(env.engine),
		NewMessageService(&fakeSender{engine: env.engine}, env.engine, fakeSearcher{}),
		[]string{"http://localhost:5173"},
		logger,
	)
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)
	return srv, env, lib
}

func TestGatewayHealthAndSnapshot(t *testing.T) {
	srv, _, _ := newTestGateway(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/snapshot?chat=A@x")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("snapshot status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestGatewayCORS(t *testing.T) {
	srv, _, _ := newTestGateway(t)

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:5173", "http://localhost:5173"},
		{"http://evil.example", ""},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Origin", tt.origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: allow-origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestGatewayServesAudio(t *testing.T) {
	srv, _, lib := newTestGateway(t)
	if _, err := lib.Write("m3", []byte("OggS")); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/audio/m3.ogg")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "audio/ogg" {
		t.Errorf("status = %d, content type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(srv.URL + "/audio/missing.ogg")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", resp.StatusCode)
	}

	if _, err := os.Stat(filepath.Join(lib.Dir(), "m3.ogg")); err != nil {
		t.Errorf("audio file: %v", err)
	}
}

func TestGatewayWebsocket(t *testing.T) {
	srv, env, _ := newTestGateway(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	tag := "work"
	cmd := Command{ID: "c1", Type: CommandSetChatFlags, ChatID: "A@x", Flags: model.ChatFlags{Tag: &tag}}
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		t.Fatal(err)
	}

	var sawFlags, sawResult bool
	for !sawFlags || !sawResult {
		var envl Envelope
		if err := wsjson.Read(ctx, conn, &envl); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch envl.Kind {
		case bus.KindChatFlags:
			var chat model.Chat
			if err := envl.Decode(&chat); err != nil || chat.Tag != "work" {
				t.Errorf("chat flags payload = %s", envl.Payload)
			}
			sawFlags = true
		case KindCommandResult:
			var reply CommandReply
			if err := envl.Decode(&reply); err != nil || reply.ID != "c1" {
				t.Errorf("reply = %s", envl.Payload)
			}
			sawResult = true
		case KindCommandError:
			t.Fatalf("command failed: %s", envl.Payload)
		}
	}

	chats, err := env.store.LoadChats()
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chats {
		if c.ID == "A@x" && c.Tag != "work" {
			t.Errorf("stored tag = %q", c.Tag)
		}
	}
}

func TestGatewayUnknownCommand(t *testing.T) {
	srv, _, _ := newTestGateway(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, Command{ID: "x", Type: "dance"}); err != nil {
		t.Fatal(err)
	}
	var envl Envelope
	if err := wsjson.Read(ctx, conn, &envl); err != nil {
		t.Fatal(err)
	}
	if envl.Kind != KindCommandError {
		t.Errorf("kind = %q, want %s", envl.Kind, KindCommandError)
	}
}
