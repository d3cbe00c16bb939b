package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/matheus3301/wppdesk/internal/model"
)

// Client talks to a session daemon over its unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is lazy; the first
// call fails if no daemon is running.
func Dial(socketPath string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection. The connection must use the json codec.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, service, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+service+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	return out, c.invoke(ctx, sessionServiceName, "GetStatus", &StatusRequest{}, out)
}

func (c *Client) Connect(ctx context.Context) (*Ack, error) {
	out := new(Ack)
	return out, c.invoke(ctx, sessionServiceName, "Connect", &ConnectRequest{}, out)
}

func (c *Client) Logout(ctx context.Context) (*Ack, error) {
	out := new(Ack)
	return out, c.invoke(ctx, sessionServiceName, "Logout", &LogoutRequest{}, out)
}

// Snapshot fetches the persisted state. chatID limits messages to one chat.
func (c *Client) Snapshot(ctx context.Context, chatID string) (*model.Snapshot, error) {
	out := new(model.Snapshot)
	return out, c.invoke(ctx, syncServiceName, "GetSnapshot", &SnapshotRequest{ChatID: chatID}, out)
}

func (c *Client) SetChatFlags(ctx context.Context, chatID string, flags model.ChatFlags) (model.Chat, error) {
	out := new(ChatResponse)
	err := c.invoke(ctx, chatServiceName, "SetChatFlags", &SetChatFlagsRequest{ChatID: chatID, Flags: flags}, out)
	return out.Chat, err
}

func (c *Client) SendText(ctx context.Context, to, text string) (model.Message, error) {
	out := new(MessageResponse)
	err := c.invoke(ctx, messageServiceName, "SendText", &SendTextRequest{To: to, Text: text}, out)
	return out.Message, err
}

func (c *Client) Transcribe(ctx context.Context, chatID, msgID string) (model.Message, error) {
	out := new(MessageResponse)
	err := c.invoke(ctx, messageServiceName, "Transcribe", &TranscribeRequest{ChatID: chatID, MsgID: msgID}, out)
	return out.Message, err
}

func (c *Client) Search(ctx context.Context, query, chatID string, limit int) (*SearchResponse, error) {
	out := new(SearchResponse)
	return out, c.invoke(ctx, messageServiceName, "Search", &SearchRequest{Query: query, ChatID: chatID, Limit: limit}, out)
}

// Watch streams events whose kind starts with prefix until ctx is done or the daemon
// goes away. fn is called for every envelope; returning an error stops the stream.
func (c *Client) Watch(ctx context.Context, prefix string, fn func(*Envelope) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &syncServiceDesc.Streams[0], "/"+syncServiceName+"/WatchEvents", grpc.CallContentSubtype(CodecName))
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := stream.SendMsg(&WatchRequest{Prefix: prefix}); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	for {
		env := new(Envelope)
		if err := stream.RecvMsg(env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}
