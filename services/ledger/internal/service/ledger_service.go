package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/kafka"
	"github.com/faisalantu/tradebridge-systems/services/ledger/internal/storage"
	"github.com/google/uuid"
)

const (
	statusCompleted = "completed"
	statusRejected  = "rejected"
)

type Store interface {
	ApplySettlement(ctx context.Context, st storage.Settlement) (*storage.SettlementResult, error)
}

type LedgerService struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

func NewLedgerService(store Store, logger *slog.Logger, metrics *Metrics) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Settle applies a completed transaction to the owner's balance. Rejected
// transactions return a nil result and no error. Errors that replaying the
// event cannot fix are wrapped with kafka.DLQ.
func (s *LedgerService) Settle(ctx context.Context, ev kafka.TransactionSettled) (*storage.SettlementResult, error) {
	start := time.Now()

	switch ev.Status {
	case statusRejected:
		s.metrics.settled("skipped", time.Since(start))
		s.logger.Info("rejected transaction skipped", "transaction_id", ev.TransactionID, "event_id", ev.EventID)
		return nil, nil
	case statusCompleted:
	default:
		s.metrics.failed("invalid_event")
		return nil, kafka.DLQ(fmt.Errorf("unexpected status %q", ev.Status), "invalid_event")
	}

	st, err := settlementFromEvent(ev)
	if err != nil {
		s.metrics.failed("invalid_event")
		return nil, kafka.DLQ(err, "invalid_event")
	}

	result, err := s.store.ApplySettlement(ctx, st)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInsufficientBalance):
			s.metrics.failed("insufficient_balance")
			return nil, kafka.DLQ(err, "insufficient_balance")
		case errors.Is(err, storage.ErrUserNotFound):
			s.metrics.failed("user_not_found")
			return nil, kafka.DLQ(err, "user_not_found")
		}
		s.metrics.failed("store")
		return nil, fmt.Errorf("apply settlement: %w", err)
	}

	if result.AlreadyProcessed {
		s.metrics.settled("duplicate", time.Since(start))
		s.logger.Info("settlement already applied", "transaction_id", ev.TransactionID, "event_id", ev.EventID)
		return result, nil
	}

	s.metrics.settled("applied", time.Since(start))
	s.logger.Info("settlement applied",
		"transaction_id", ev.TransactionID,
		"user_id", ev.UserID,
		"type", ev.Type,
		"delta", result.Delta.String(),
		"balance", result.Balance.String(),
	)
	return result, nil
}

func settlementFromEvent(ev kafka.TransactionSettled) (storage.Settlement, error) {
	txID, err := parseUUID(ev.TransactionID, "transaction_id")
	if err != nil {
		return storage.Settlement{}, err
	}
	userID, err := parseUUID(ev.UserID, "user_id")
	if err != nil {
		return storage.Settlement{}, err
	}
	if ev.Type != storage.TypeDeposit && ev.Type != storage.TypeWithdrawal {
		return storage.Settlement{}, fmt.Errorf("invalid type %q", ev.Type)
	}
	if !ev.Amount.IsPositive() {
		return storage.Settlement{}, fmt.Errorf("amount must be positive")
	}
	return storage.Settlement{
		EventID:       ev.EventID,
		TransactionID: txID,
		UserID:        userID,
		Type:          ev.Type,
		Amount:        ev.Amount,
	}, nil
}

func parseUUID(value, field string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s is required", field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", field)
	}
	return id, nil
}
