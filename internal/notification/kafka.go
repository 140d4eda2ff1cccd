package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/NogaLive/SNIUGB/pkg/platform/circuit"
)

// ErrGatewayUnavailable is returned without contacting the broker while the
// gateway's circuit is open.
var ErrGatewayUnavailable = errors.New("notification gateway unavailable")

// Producer is the subset of *kgo.Client used by KafkaGateway.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaGateway publishes notices as JSON records keyed by respondent, so a
// respondent's notices stay ordered within one partition.
type KafkaGateway struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	breaker  *circuit.Breaker
}

type KafkaOption func(*KafkaGateway)

// WithBreaker stops publishing attempts while the broker keeps failing.
func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(g *KafkaGateway) {
		g.breaker = b
	}
}

func NewKafkaGateway(producer Producer, topic string, logger *slog.Logger, opts ...KafkaOption) *KafkaGateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &KafkaGateway{producer: producer, topic: topic, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *KafkaGateway) NotifyTransferCreated(ctx context.Context, n TransferCreated) error {
	return g.publish(ctx, KindTransferCreated, n.RespondentID, n.TransferCode, n)
}

func (g *KafkaGateway) NotifyResetCode(ctx context.Context, n ResetCode) error {
	return g.publish(ctx, KindResetCode, n.RespondentID, n.TransferCode, n)
}

func (g *KafkaGateway) publish(ctx context.Context, kind Kind, respondentID, transferCode string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s notice: %w", kind, err)
	}
	record := &kgo.Record{
		Topic: g.topic,
		Key:   []byte(respondentID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(kind)},
		},
	}
	if g.breaker != nil && !g.breaker.Allow() {
		return fmt.Errorf("publish %s notice: %w", kind, ErrGatewayUnavailable)
	}
	if err := g.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		g.recordFailure(ctx)
		return fmt.Errorf("publish %s notice: %w", kind, err)
	}
	g.recordSuccess(ctx)
	g.logger.DebugContext(ctx, "notice published",
		"kind", kind,
		"transfer_code", transferCode,
		"topic", g.topic,
	)
	return nil
}

func (g *KafkaGateway) recordFailure(ctx context.Context) {
	if g.breaker == nil {
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "notification circuit opened", "breaker", g.breaker.Name(), "topic", g.topic)
	}
}

func (g *KafkaGateway) recordSuccess(ctx context.Context) {
	if g.breaker == nil {
		return
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "notification circuit closed", "breaker", g.breaker.Name(), "topic", g.topic)
	}
}
