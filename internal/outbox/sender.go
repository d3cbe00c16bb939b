package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/wa"
)

// ErrStopped is returned for requests made after the sender stopped.
var ErrStopped = errors.New("outbox stopped")

// TextSender is the interface for sending text messages via WhatsApp.
type TextSender interface {
	SendText(ctx context.Context, to, text string) (wa.SentMessage, error)
}

// Recorder stores a sent message and pushes it to renderers. *sync.Engine implements it.
type Recorder interface {
	RecordSent(ctx context.Context, msg model.Message) (model.Delta, error)
}

// Result reports the outcome of one queued message.
type Result struct {
	ClientID string
	Message  model.Message
	Err      error
}

type request struct {
	clientID string
	to       string
	text     string
	result   chan Result
}

// Sender sends queued messages one at a time, in the order they were queued.
type Sender struct {
	sender   TextSender
	recorder Recorder
	bus      *bus.Bus
	logger   *zap.Logger

	queue  chan request
	cancel context.CancelFunc
	done   chan struct{}

	// mu orders Enqueue against shutdown: once closed is set under the write lock, no
	// request can reach the queue, so the final drain answers every queued request.
	mu       sync.RWMutex
	closed   bool
	stopping <-chan struct{}
}

// NewSender creates a new outbox sender.
func NewSender(sender TextSender, recorder Recorder, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		sender:   sender,
		recorder: recorder,
		bus:      b,
		logger:   logger,
		queue:    make(chan request, 64),
		done:     make(chan struct{}),
	}
}

// Start begins draining the queue.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Lock()
	s.stopping = ctx.Done()
	s.mu.Unlock()
	go s.loop(ctx)
}

// Stop stops the sender loop. Requests still queued fail with ErrStopped.
func (s *Sender) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Enqueue queues a text message and returns its client id plus a channel that receives
// exactly one Result.
func (s *Sender) Enqueue(ctx context.Context, to, text string) (string, <-chan Result, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", nil, errors.New("recipient is required")
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, errors.New("message text is empty")
	}
	req := request{
		clientID: uuid.NewString(),
		to:       to,
		text:     text,
		result:   make(chan Result, 1),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", nil, ErrStopped
	}
	select {
	case s.queue <- req:
		return req.clientID, req.result, nil
	case <-s.stopping:
		return "", nil, ErrStopped
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// Send queues a message and waits for it to be sent.
func (s *Sender) Send(ctx context.Context, to, text string) (model.Message, error) {
	_, ch, err := s.Enqueue(ctx, to, text)
	if err != nil {
		return model.Message{}, err
	}
	select {
	case res := <-ch:
		return res.Message, res.Err
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case req := <-s.queue:
			req.result <- s.process(ctx, req)
		case <-ctx.Done():
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.drain()
			return
		}
	}
}

func (s *Sender) drain() {
	for {
		select {
		case req := <-s.queue:
			req.result <- Result{ClientID: req.clientID, Err: ErrStopped}
		default:
			return
		}
	}
}

func (s *Sender) process(ctx context.Context, req request) Result {
	res := Result{ClientID: req.clientID}

	sent, err := s.sender.SendText(ctx, req.to, req.text)
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", req.clientID))
		s.bus.Publish(bus.NewEvent(bus.KindError, model.Notice{Message: "message not sent: " + err.Error()}))
		res.Err = fmt.Errorf("send to %s: %w", req.to, err)
		return res
	}

	msg := model.TextMessage(sent.Chat, sent.ID, true, sent.Timestamp.Unix(), req.text)
	msg.Status = model.StatusServerAck
	res.Message = msg

	s.logger.Info("message sent", zap.String("client_msg_id", req.clientID), zap.String("server_msg_id", sent.ID))
	if s.recorder != nil {
		if _, err := s.recorder.RecordSent(ctx, msg); err != nil {
			// The message is on the server; only the local copy is missing.
			s.logger.Error("failed to store sent message", zap.Error(err), zap.String("msg_id", sent.ID))
		}
	}
	return res
}
