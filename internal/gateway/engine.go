package gateway

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"otp-auth-service/internal/audit"
	"otp-auth-service/internal/credential"
	"otp-auth-service/internal/directory"
	"otp-auth-service/internal/referral"
	"otp-auth-service/internal/session"
	"otp-auth-service/internal/util"
	"otp-auth-service/internal/validation"
	"otp-auth-service/internal/verifier"
)

// Peer is one connected client. Send must be safe for concurrent use.
type Peer interface {
	ID() string
	Send(event string, payload any) error
}

// Engine routes client events to their handlers. Each dispatched event runs
// in its own goroutine so a slow store call never blocks the peer's read
// loop, and a handler panic is contained to that one event.
type Engine struct {
	directory *directory.Directory
	ledger    *session.Ledger
	verifier  *verifier.Verifier
	issuer    *credential.Issuer
	allocator *referral.Allocator
	validator *validation.Validator
	audit     audit.Recorder
	otpDigits int
	logger    *zap.Logger
}

type EngineParams struct {
	Directory *directory.Directory
	Ledger    *session.Ledger
	Verifier  *verifier.Verifier
	Issuer    *credential.Issuer
	Allocator *referral.Allocator
	Validator *validation.Validator
	Audit     audit.Recorder
	OTPDigits int
	Logger    *zap.Logger
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		directory: p.Directory,
		ledger:    p.Ledger,
		verifier:  p.Verifier,
		issuer:    p.Issuer,
		allocator: p.Allocator,
		validator: p.Validator,
		audit:     p.Audit,
		otpDigits: p.OTPDigits,
		logger:    p.Logger,
	}
}

// HandleConnect greets a freshly connected peer and records the connection.
func (e *Engine) HandleConnect(ctx context.Context, peer Peer) {
	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindConnect,
		PeerID:    peer.ID(),
		Timestamp: time.Now().UTC(),
	})
	e.send(peer, EventConnectResponse, connectResponse{
		Status:   "connected",
		PeerID:   peer.ID(),
		ServerTS: time.Now().UTC().Unix(),
		Message:  "connection established",
	})
}

// Dispatch routes one inbound event. It returns immediately; the handler
// runs asynchronously.
func (e *Engine) Dispatch(ctx context.Context, peer Peer, event string, data json.RawMessage) {
	go e.dispatch(ctx, peer, event, data)
}

func (e *Engine) dispatch(ctx context.Context, peer Peer, event string, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Event handler panicked",
				util.String("event", event),
				util.String("peer_id", peer.ID()),
				util.Any("panic", r))
			e.sendError(ctx, peer, event, CodeSystemError, "internal error")
		}
	}()

	switch event {
	case EventLogin:
		e.handleLogin(ctx, peer, data)
	case EventVerifyOTP:
		e.handleVerifyOTP(ctx, peer, data)
	case EventSetProfile:
		e.handleSetProfile(ctx, peer, data)
	case EventSetLanguage:
		e.handleSetLanguage(ctx, peer, data)
	case EventDeviceInfo:
		e.handleDeviceInfo(ctx, peer, data)
	default:
		e.sendError(ctx, peer, event, CodeUnknownEvent, "unknown event: "+event)
	}
}

func (e *Engine) send(peer Peer, event string, payload any) {
	if err := peer.Send(event, payload); err != nil {
		e.logger.Warn("Failed to send event to peer",
			util.String("event", event),
			util.String("peer_id", peer.ID()),
			util.ErrorField(err))
	}
}

func (e *Engine) sendError(ctx context.Context, peer Peer, event, code, message string) {
	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindConnectionError,
		PeerID:    peer.ID(),
		Timestamp: time.Now().UTC(),
		Fields:    map[string]any{"event": event, "code": code, "message": message},
	})
	e.send(peer, EventConnectionError, errorResponse{
		Code:    code,
		Event:   event,
		Message: message,
	})
}

func (e *Engine) sendValidationError(ctx context.Context, peer Peer, event string, f *validation.Failure) {
	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindConnectionError,
		PeerID:    peer.ID(),
		Timestamp: time.Now().UTC(),
		Fields:    map[string]any{"event": event, "code": f.Code, "field": f.Field},
	})
	e.send(peer, EventConnectionError, errorResponse{
		Code:    f.Code,
		Event:   event,
		Field:   f.Field,
		Message: f.Message,
	})
}
