package api

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/wppdesk/internal/media"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/store"
	"github.com/matheus3301/wppdesk/internal/wa"
)

const (
	sessionServiceName = "wppdesk.v1.SessionService"
	syncServiceName    = "wppdesk.v1.SyncService"
	chatServiceName    = "wppdesk.v1.ChatService"
	messageServiceName = "wppdesk.v1.MessageService"
)

// SessionServer reports and controls the WhatsApp session.
type SessionServer interface {
	GetStatus(context.Context, *StatusRequest) (*StatusResponse, error)
	Connect(context.Context, *ConnectRequest) (*Ack, error)
	Logout(context.Context, *LogoutRequest) (*Ack, error)
}

// SyncServer serves the persisted state and the live event stream.
type SyncServer interface {
	GetSnapshot(context.Context, *SnapshotRequest) (*model.Snapshot, error)
	WatchEvents(*WatchRequest, EventStream) error
}

// ChatServer edits local chat metadata.
type ChatServer interface {
	SetChatFlags(context.Context, *SetChatFlagsRequest) (*ChatResponse, error)
}

// MessageServer sends, transcribes and searches messages.
type MessageServer interface {
	SendText(context.Context, *SendTextRequest) (*MessageResponse, error)
	Transcribe(context.Context, *TranscribeRequest) (*MessageResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*Envelope) error
	Context() context.Context
}

type eventStream struct {
	grpc.ServerStream
}

func (s eventStream) Send(env *Envelope) error { return s.ServerStream.SendMsg(env) }

// Register adds the four services to srv.
func Register(srv grpc.ServiceRegistrar, session SessionServer, sync SyncServer, chat ChatServer, message MessageServer) {
	srv.RegisterService(&sessionServiceDesc, session)
	srv.RegisterService(&syncServiceDesc, sync)
	srv.RegisterService(&chatServiceDesc, chat)
	srv.RegisterService(&messageServiceDesc, message)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(sessionServiceName, "GetStatus", SessionServer.GetStatus),
		unary(sessionServiceName, "Connect", SessionServer.Connect),
		unary(sessionServiceName, "Logout", SessionServer.Logout),
	},
	Metadata: "wppdesk/v1/session",
}

var syncServiceDesc = grpc.ServiceDesc{
	ServiceName: syncServiceName,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(syncServiceName, "GetSnapshot", SyncServer.GetSnapshot),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(SyncServer).WatchEvents(in, eventStream{stream})
			},
		},
	},
	Metadata: "wppdesk/v1/sync",
}

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: chatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(chatServiceName, "SetChatFlags", ChatServer.SetChatFlags),
	},
	Metadata: "wppdesk/v1/chat",
}

var messageServiceDesc = grpc.ServiceDesc{
	ServiceName: messageServiceName,
	HandlerType: (*MessageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(messageServiceName, "SendText", MessageServer.SendText),
		unary(messageServiceName, "Transcribe", MessageServer.Transcribe),
		unary(messageServiceName, "Search", MessageServer.Search),
	},
	Metadata: "wppdesk/v1/message",
}

// unary builds the method descriptor for one request/response call, running the
// server's interceptor when one is installed.
func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, wa.ErrNotConnected):
		code = codes.Unavailable
	case errors.Is(err, media.ErrTranscriptionDisabled):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
