package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"otp-auth-service/internal/client"
	"otp-auth-service/internal/util"
)

// Event kinds recorded across the login flow.
const (
	KindConnect          = "connect"
	KindConnectionError  = "connection_error"
	KindDeviceInfo       = "device_info"
	KindLogin            = "login"
	KindLoginSuccess     = "login_success"
	KindOTPVerification  = "otp_verification"
	KindUserRegistration = "user_registration"
	KindProfileUpdate    = "profile_update"
	KindLanguageSetting  = "language_setting"
)

// Event is one audit record. Fields carries kind-specific detail and is
// serialized as the payload.
type Event struct {
	Kind      string         `json:"kind"`
	PeerID    string         `json:"peer_id"`
	MobileNo  string         `json:"mobile_no,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recorder persists audit events. Implementations must never fail the
// calling flow; delivery problems are logged and swallowed.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}

// KafkaRecorder publishes events as JSON keyed by kind.
type KafkaRecorder struct {
	producer *client.KafkaProducer
	logger   *zap.Logger
}

func NewKafkaRecorder(producer *client.KafkaProducer, logger *zap.Logger) *KafkaRecorder {
	return &KafkaRecorder{producer: producer, logger: logger}
}

func (r *KafkaRecorder) Record(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to encode audit event", util.ErrorField(err))
		return
	}
	if err := r.producer.Publish(ctx, []byte(event.Kind), payload); err != nil {
		r.logger.Error("Failed to publish audit event",
			util.String("kind", event.Kind),
			util.ErrorField(err))
	}
}

// ClickHouseRecorder writes events to the analytics table.
type ClickHouseRecorder struct {
	ch     *client.ClickHouseClient
	logger *zap.Logger
}

func NewClickHouseRecorder(ch *client.ClickHouseClient, logger *zap.Logger) *ClickHouseRecorder {
	return &ClickHouseRecorder{ch: ch, logger: logger}
}

func (r *ClickHouseRecorder) Record(ctx context.Context, event Event) {
	payload, err := json.Marshal(event.Fields)
	if err != nil {
		r.logger.Error("Failed to encode audit fields", util.ErrorField(err))
		return
	}
	if err := r.ch.InsertAuditEvent(ctx, event.Kind, event.PeerID, event.MobileNo, event.Timestamp, string(payload)); err != nil {
		r.logger.Error("Failed to insert audit event",
			util.String("kind", event.Kind),
			util.ErrorField(err))
	}
}

// MultiRecorder fans one event out to several sinks.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, event Event) {
	for _, r := range m {
		r.Record(ctx, event)
	}
}
