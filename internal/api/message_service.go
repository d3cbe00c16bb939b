package api

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/wppdesk/internal/index"
	"github.com/matheus3301/wppdesk/internal/model"
)

// TextSender queues outgoing text. *outbox.Sender implements it.
type TextSender interface {
	Send(ctx context.Context, to, text string) (model.Message, error)
}

// Transcriber transcribes a stored voice note. *sync.Engine implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, chatID, msgID string) (model.Message, error)
}

// Searcher queries the message index. *index.DB implements it.
type Searcher interface {
	Search(ctx context.Context, query, chatID string, limit int) ([]index.Hit, error)
}

// MessageService implements MessageServer.
type MessageService struct {
	sender      TextSender
	transcriber Transcriber
	searcher    Searcher
}

// NewMessageService creates a new message service.
func NewMessageService(sender TextSender, transcriber Transcriber, searcher Searcher) *MessageService {
	return &MessageService{sender: sender, transcriber: transcriber, searcher: searcher}
}

func (s *MessageService) SendText(ctx context.Context, req *SendTextRequest) (*MessageResponse, error) {
	if req.To == "" || strings.TrimSpace(req.Text) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "recipient and text are required")
	}
	msg, err := s.sender.Send(ctx, req.To, req.Text)
	if err != nil {
		return nil, toStatus("send", err)
	}
	return &MessageResponse{Message: msg}, nil
}

func (s *MessageService) Transcribe(ctx context.Context, req *TranscribeRequest) (*MessageResponse, error) {
	if req.ChatID == "" || req.MsgID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat id and message id are required")
	}
	msg, err := s.transcriber.Transcribe(ctx, req.ChatID, req.MsgID)
	if err != nil {
		return nil, toStatus("transcribe", err)
	}
	return &MessageResponse{Message: msg}, nil
}

func (s *MessageService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	if s.searcher == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "search index not available")
	}
	hits, err := s.searcher.Search(ctx, req.Query, req.ChatID, req.Limit)
	if err != nil {
		return nil, toStatus("search", err)
	}
	return &SearchResponse{Hits: hits}, nil
}
