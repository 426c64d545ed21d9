package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/faisalantu/tradebridge-systems/libs/kafka"
	"github.com/faisalantu/tradebridge-systems/services/ledger/internal/storage"
)

const balancesUpdatedEventType = "balances.updated"

type Settler interface {
	Settle(ctx context.Context, ev kafka.TransactionSettled) (*storage.SettlementResult, error)
}

// SettlementConsumer handles transactions.settled messages.
type SettlementConsumer struct {
	ledger        Settler
	producer      kafka.Publisher
	balancesTopic string
	logger        *slog.Logger
}

func NewSettlementConsumer(ledger Settler, producer kafka.Publisher, balancesTopic string, logger *slog.Logger) *SettlementConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	if producer == nil {
		producer = kafka.NoopPublisher{}
	}
	if balancesTopic == "" {
		balancesTopic = kafka.TopicBalancesUpdated
	}
	return &SettlementConsumer{
		ledger:        ledger,
		producer:      producer,
		balancesTopic: balancesTopic,
		logger:        logger,
	}
}

func (c *SettlementConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil || len(msg.Value) == 0 {
		return kafka.DLQ(fmt.Errorf("empty kafka message"), "invalid_payload")
	}
	var event kafka.TransactionSettled
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return kafka.DLQ(fmt.Errorf("decode transactions.settled: %w", err), "invalid_payload")
	}
	if err := event.Validate(); err != nil {
		return kafka.DLQ(err, "invalid_envelope")
	}

	result, err := c.ledger.Settle(ctx, event)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	// Duplicates republish with the same event id so a crash between commit
	// and publish still yields exactly one distinct balances.updated.
	envelope, err := kafka.NewEnvelopeWithID(
		kafka.DeterministicEventID(balancesUpdatedEventType, event.TransactionID),
		balancesUpdatedEventType,
		1,
		event.CorrelationID,
	)
	if err != nil {
		return err
	}
	update := kafka.BalanceUpdated{
		Envelope:      envelope,
		UserID:        result.UserID.String(),
		TransactionID: event.TransactionID,
		Delta:         result.Delta,
		Balance:       result.Balance,
	}
	if _, _, err := c.producer.PublishJSON(ctx, c.balancesTopic, update.UserID, update); err != nil {
		// the balance change is committed; the publisher dead-letters the event
		c.logger.Error("balances.updated publish failed", "transaction_id", event.TransactionID, "error", err)
	}
	return nil
}
