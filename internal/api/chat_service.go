package api

import (
	"context"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/wppdesk/internal/model"
)

// FlagSetter updates local chat metadata.
type FlagSetter interface {
	SetChatFlags(chatID string, flags model.ChatFlags) (model.Chat, error)
}

// ChatService implements ChatServer.
type ChatService struct {
	flags FlagSetter
}

// NewChatService creates a new chat service.
func NewChatService(flags FlagSetter) *ChatService {
	return &ChatService{flags: flags}
}

func (s *ChatService) SetChatFlags(_ context.Context, req *SetChatFlagsRequest) (*ChatResponse, error) {
	if req.ChatID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat id is required")
	}
	if req.Flags.IsZero() {
		return nil, grpcstatus.Error(codes.InvalidArgument, "no flags to set")
	}
	chat, err := s.flags.SetChatFlags(req.ChatID, req.Flags)
	if err != nil {
		return nil, toStatus("set chat flags", err)
	}
	return &ChatResponse{Chat: chat}, nil
}
