package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/model"
)

// Command types a websocket client may send.
const (
	CommandSendMessage  = "send-message"
	CommandTranscribe   = "transcribe"
	CommandSetChatFlags = "set-chat-flags"
	CommandSearch       = "search"
)

// Kinds of the replies sent to the commanding client only.
const (
	KindCommandResult = "command.result"
	KindCommandError  = "command.error"
)

// Command is one inbound websocket frame.
type Command struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	To     string          `json:"to,omitempty"`
	Text   string          `json:"text,omitempty"`
	ChatID string          `json:"chatId,omitempty"`
	MsgID  string          `json:"msgId,omitempty"`
	Flags  model.ChatFlags `json:"flags"`
	Query  string          `json:"query,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// CommandReply answers one Command.
type CommandReply struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		g.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch, unsub := g.bus.Subscribe(bus.NamespaceUI, 256)
	defer unsub()

	go func() {
		defer cancel()
		g.readCommands(ctx, conn)
	}()

	for {
		select {
		case evt := <-ch:
			env, err := NewEnvelope(evt)
			if err != nil {
				g.logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := wsjson.Write(ctx, conn, env); err != nil {
				g.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (g *Gateway) readCommands(ctx context.Context, conn *websocket.Conn) {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				g.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		reply := g.runCommand(ctx, cmd)
		evt := bus.NewEvent(KindCommandResult, reply)
		if reply.Error != "" {
			evt.Kind = KindCommandError
		}
		env, err := NewEnvelope(evt)
		if err != nil {
			continue
		}
		if err := wsjson.Write(ctx, conn, env); err != nil {
			return
		}
	}
}

func (g *Gateway) runCommand(ctx context.Context, cmd Command) CommandReply {
	reply := CommandReply{ID: cmd.ID, Type: cmd.Type}
	var (
		result any
		err    error
	)
	switch cmd.Type {
	case CommandSendMessage:
		result, err = g.msgs.SendText(ctx, &SendTextRequest{To: cmd.To, Text: cmd.Text})
	case CommandTranscribe:
		result, err = g.msgs.Transcribe(ctx, &TranscribeRequest{ChatID: cmd.ChatID, MsgID: cmd.MsgID})
	case CommandSetChatFlags:
		result, err = g.chats.SetChatFlags(ctx, &SetChatFlagsRequest{ChatID: cmd.ChatID, Flags: cmd.Flags})
	case CommandSearch:
		result, err = g.msgs.Search(ctx, &SearchRequest{Query: cmd.Query, ChatID: cmd.ChatID, Limit: cmd.Limit})
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}
	if err != nil {
		if st, ok := grpcstatus.FromError(err); ok {
			reply.Error = st.Message()
		} else {
			reply.Error = err.Error()
		}
		return reply
	}
	reply.Result = result
	return reply
}
