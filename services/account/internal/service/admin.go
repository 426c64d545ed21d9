package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/faisalantu/tradebridge-systems/libs/kafka"
	"github.com/faisalantu/tradebridge-systems/services/account/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor identifies the admin performing a mutation. RequestID becomes the
// correlation id of any event the mutation publishes.
type Actor struct {
	ID        uuid.UUID
	RequestID string
}

const (
	entityUser        = "user"
	entityTransaction = "transaction"
	entityInvestment  = "investment"
	entityBankDetails = "bank_details"
)

func (s *AccountService) Stats(ctx context.Context) (storage.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

func (s *AccountService) SearchUsers(ctx context.Context, search string) ([]storage.User, error) {
	users, err := s.store.SearchUsers(ctx, search, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// UpdateUser applies an admin edit of balance and/or status. The balance is
// set directly; it is not a ledger movement.
func (s *AccountService) UpdateUser(ctx context.Context, actor Actor, id uuid.UUID, upd storage.UserUpdate) (*storage.User, error) {
	var v apperr.Validator
	v.Check(upd.Balance != nil || upd.Status != nil, "body", "balance or status is required")
	if upd.Balance != nil {
		v.Check(!upd.Balance.IsNegative(), "balance", "must not be negative")
		v.Check(upd.Balance.Equal(upd.Balance.Round(2)), "balance", "must have at most 2 decimal places")
	}
	if upd.Status != nil {
		v.Check(storage.ValidUserStatus(*upd.Status), "status", "must be pending, active or suspended")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if upd.Status != nil && *upd.Status == storage.UserSuspended && id == actor.ID {
		return nil, apperr.Forbidden("admins cannot suspend themselves")
	}

	before, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "user")
	}
	user, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, mapStoreErr(err, "user")
	}

	details := map[string]any{}
	if upd.Balance != nil {
		details["balanceBefore"] = before.Balance.StringFixed(2)
		details["balance"] = user.Balance.StringFixed(2)
	}
	if upd.Status != nil {
		details["statusBefore"] = before.Status
		details["status"] = user.Status
	}
	s.audit(ctx, actor, "user.updated", entityUser, id, details)
	s.publishUserChanged(ctx, actor, user, "updated")
	return user, nil
}

// SetUserStatus backs the activate and suspend shortcuts.
func (s *AccountService) SetUserStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*storage.User, error) {
	return s.UpdateUser(ctx, actor, id, storage.UserUpdate{Status: &status})
}

func (s *AccountService) DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error {
	if id == actor.ID {
		return apperr.Forbidden("admins cannot delete themselves")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return mapStoreErr(err, "user")
	}
	s.audit(ctx, actor, "user.deleted", entityUser, id, nil)
	s.publishUserChanged(ctx, actor, &storage.User{ID: id}, "deleted")
	return nil
}

func (s *AccountService) BankDetails(ctx context.Context, userID uuid.UUID) (*storage.BankAccount, error) {
	if _, err := s.Profile(ctx, userID); err != nil {
		return nil, err
	}
	acc, err := s.store.GetBankDetails(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, "bank details")
	}
	return acc, nil
}

// PutBankDetails stores the account a user withdraws to. The account must be
// in the user's currency and carry only that currency's identifiers.
func (s *AccountService) PutBankDetails(ctx context.Context, actor Actor, userID uuid.UUID, d bankdetails.BankDetails) (bankdetails.BankDetails, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return bankdetails.BankDetails{}, err
	}
	userCurrency := currency.Currency(user.Currency)
	if d.Currency == "" {
		d.Currency = userCurrency
	}
	if d.Currency != userCurrency {
		return bankdetails.BankDetails{}, apperr.Field("currency", "must match the user's currency "+userCurrency.String())
	}
	d = d.Normalize()
	d.Reference = ""
	if err := bankdetails.Validate(d); err != nil {
		return bankdetails.BankDetails{}, err
	}

	if err := s.store.UpsertBankDetails(ctx, userID, d); err != nil {
		return bankdetails.BankDetails{}, fmt.Errorf("save bank details: %w", err)
	}
	s.audit(ctx, actor, "bank_details.updated", entityBankDetails, userID, map[string]any{"currency": d.Currency.String()})
	return d, nil
}

func (s *AccountService) SearchInvestments(ctx context.Context, search string) ([]storage.Investment, error) {
	items, err := s.store.SearchInvestments(ctx, search, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search investments: %w", err)
	}
	return items, nil
}

func (s *AccountService) CreateInvestment(ctx context.Context, actor Actor, in storage.InvestmentInput) (*storage.Investment, error) {
	inv, err := storage.NewInvestment(in)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveOwner(ctx, in.UserID); err != nil {
		return nil, err
	}

	created, err := s.store.CreateInvestment(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create investment: %w", err)
	}
	s.audit(ctx, actor, "investment.created", entityInvestment, created.ID, investmentDetails(created))
	s.publishInvestmentChanged(ctx, actor, created, "created")
	return created, nil
}

func (s *AccountService) UpdateInvestment(ctx context.Context, actor Actor, id uuid.UUID, in storage.InvestmentInput) (*storage.Investment, error) {
	if err := storage.ValidateInvestment(in); err != nil {
		return nil, err
	}
	inv, err := s.store.GetInvestment(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "investment")
	}
	if in.UserID != inv.UserID {
		if err := s.requireActiveOwner(ctx, in.UserID); err != nil {
			return nil, err
		}
	}
	if err := inv.Apply(in); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateInvestment(ctx, *inv)
	if err != nil {
		return nil, mapStoreErr(err, "investment")
	}
	s.audit(ctx, actor, "investment.updated", entityInvestment, id, investmentDetails(updated))
	s.publishInvestmentChanged(ctx, actor, updated, "updated")
	return updated, nil
}

func (s *AccountService) CloseInvestment(ctx context.Context, actor Actor, id uuid.UUID) (*storage.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "investment")
	}
	if inv.Status == storage.InvestmentClosed {
		return nil, apperr.Conflict("", "investment is already closed")
	}
	inv.Status = storage.InvestmentClosed

	closed, err := s.store.UpdateInvestment(ctx, *inv)
	if err != nil {
		return nil, mapStoreErr(err, "investment")
	}
	s.audit(ctx, actor, "investment.closed", entityInvestment, id, investmentDetails(closed))
	s.publishInvestmentChanged(ctx, actor, closed, "closed")
	return closed, nil
}

func (s *AccountService) requireActiveOwner(ctx context.Context, userID uuid.UUID) error {
	owner, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Field("userId", "user not found")
	}
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}
	if owner.Status != storage.UserActive {
		return apperr.Field("userId", "user must be active")
	}
	return nil
}

// RecordDeposit registers incoming funds matched to a user by reference
// code. The deposit stays pending until an admin completes it.
func (s *AccountService) RecordDeposit(ctx context.Context, actor Actor, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Field("amount", "must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, apperr.Field("amount", "must have at most 2 decimal places")
	}
	tx, err := s.store.CreateDeposit(ctx, userID, amount)
	if err != nil {
		return nil, mapStoreErr(err, "user")
	}
	s.audit(ctx, actor, "deposit.recorded", entityTransaction, tx.ID, map[string]any{
		"userId": userID.String(),
		"amount": amount.StringFixed(2),
	})
	return tx, nil
}

// SettleTransaction completes or rejects a pending transaction and publishes
// transactions.settled for the ledger. The event id is derived from the
// transaction and outcome so a replay is recognised downstream.
func (s *AccountService) SettleTransaction(ctx context.Context, actor Actor, id uuid.UUID, status string) (*storage.Transaction, error) {
	if status != storage.TxCompleted && status != storage.TxRejected {
		return nil, apperr.Field("status", "must be completed or rejected")
	}
	tx, err := s.store.SettleTransaction(ctx, id, status)
	if err != nil {
		return nil, mapStoreErr(err, "transaction")
	}
	s.metrics.settled(tx.Type, tx.Status)
	s.audit(ctx, actor, "transaction."+status, entityTransaction, id, map[string]any{
		"userId": tx.UserID.String(),
		"type":   tx.Type,
		"amount": tx.Amount.StringFixed(2),
	})

	var cur string
	if user, err := s.store.GetUser(ctx, tx.UserID); err == nil {
		cur = user.Currency
	}
	env, err := kafka.NewEnvelopeWithID(kafka.DeterministicEventID(tx.ID.String(), tx.Status), kafka.TopicTransactionsSettled, 1, actor.RequestID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.TopicTransactionsSettled, tx.UserID.String(), kafka.TransactionSettled{
		Envelope:      env,
		TransactionID: tx.ID.String(),
		UserID:        tx.UserID.String(),
		Type:          tx.Type,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      cur,
	})
	return tx, nil
}

func (s *AccountService) audit(ctx context.Context, actor Actor, action, entityType string, entityID uuid.UUID, details map[string]any) {
	s.metrics.mutation(action)
	err := s.store.InsertAudit(ctx, storage.AuditLog{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
	if err != nil {
		s.logger.Error("audit log write failed",
			slog.String("action", action),
			slog.String("entity_id", entityID.String()),
			slog.String("actor_id", actor.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *AccountService) publishUserChanged(ctx context.Context, actor Actor, user *storage.User, action string) {
	env, err := kafka.NewEnvelope(kafka.TopicUsersChanged, 1, actor.RequestID)
	if err != nil {
		s.logger.Error("build envelope", slog.Any("error", err))
		return
	}
	s.publish(ctx, kafka.TopicUsersChanged, user.ID.String(), kafka.UserChanged{
		Envelope: env,
		UserID:   user.ID.String(),
		Action:   action,
		Status:   user.Status,
	})
}

func (s *AccountService) publishInvestmentChanged(ctx context.Context, actor Actor, inv *storage.Investment, action string) {
	env, err := kafka.NewEnvelope(kafka.TopicInvestmentsChanged, 1, actor.RequestID)
	if err != nil {
		s.logger.Error("build envelope", slog.Any("error", err))
		return
	}
	s.publish(ctx, kafka.TopicInvestmentsChanged, inv.UserID.String(), kafka.InvestmentChanged{
		Envelope:     env,
		InvestmentID: inv.ID.String(),
		UserID:       inv.UserID.String(),
		Action:       action,
		Status:       inv.Status,
		CurrentValue: inv.CurrentValue,
	})
}

// publish never fails the request: the row is already committed and the
// publisher routes failed messages to the DLQ.
func (s *AccountService) publish(ctx context.Context, topic, key string, value any) {
	if _, _, err := s.publisher.PublishJSON(ctx, topic, key, value); err != nil {
		s.logger.Error("event publish failed",
			slog.String("topic", topic),
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

func investmentDetails(inv *storage.Investment) map[string]any {
	return map[string]any{
		"userId":         inv.UserID.String(),
		"symbol":         inv.Symbol,
		"status":         inv.Status,
		"initialValue":   inv.InitialValue.StringFixed(2),
		"percentageGain": inv.PercentageGain.String(),
		"currentValue":   inv.CurrentValue.StringFixed(2),
	}
}
