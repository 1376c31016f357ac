package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/kitabpay/backend/internal/models"
	"github.com/kitabpay/backend/internal/store"
)

// LedgerService owns all balance mutation. The backing store offers no
// multi-record transaction, so TransferAtomic reaches eventual atomicity by
// compensating: if the credit leg fails after the debit applied, an equal
// credit is re-applied to the sender before the error surfaces.
type LedgerService struct {
	accounts store.AccountStore
	log      *logrus.Logger
}

func NewLedgerService(accounts store.AccountStore, log *logrus.Logger) *LedgerService {
	return &LedgerService{accounts: accounts, log: log}
}

// Debit decrements the account balance and returns the new balance. The
// decrement is conditional on sufficient funds at the store.
func (s *LedgerService) Debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.accounts.DebitBalance(ctx, accountID, amount)
	switch err {
	case nil:
		return balance, nil
	case store.ErrInsufficientBalance:
		return 0, ErrInsufficientFunds
	case store.ErrNotFound:
		return 0, ErrAccountNotFound
	default:
		return 0, err
	}
}

// Credit increments the account balance unconditionally and returns the new
// balance.
func (s *LedgerService) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.accounts.CreditBalance(ctx, accountID, amount)
	if err == store.ErrNotFound {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// RecordEntry appends one line to the transaction log. Every user-visible
// debit or credit must be followed by a matching entry.
func (s *LedgerService) RecordEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return s.accounts.AppendEntry(ctx, entry)
}

// TransferSpec describes one two-legged balance move plus the log lines it
// produces on success.
type TransferSpec struct {
	// OperationID, when set, makes the transfer replay-safe: replaying the
	// id of a settled transfer is a no-op instead of a double-apply, while a
	// failed attempt releases the id so the retry can run in full.
	OperationID       string
	FromID            string
	ToID              string
	Amount            int64
	DebitKind         models.EntryKind
	CreditKind        models.EntryKind
	DebitDescription  string
	CreditDescription string
	ListingID         string
}

// TransferAtomic performs debit(from) then credit(to). Readers of either
// account between the two legs see no partial-state guarantee; both accounts
// are consistent by the time the call returns. No ledger entries are recorded
// for a compensated attempt.
func (s *LedgerService) TransferAtomic(ctx context.Context, spec TransferSpec) error {
	if spec.Amount <= 0 {
		return ErrInvalidAmount
	}

	if spec.OperationID != "" {
		claimed, err := s.accounts.ClaimOperation(ctx, spec.OperationID)
		if err != nil {
			return err
		}
		if !claimed {
			s.log.WithFields(logrus.Fields{
				"operation_id": spec.OperationID,
				"from":         spec.FromID,
				"to":           spec.ToID,
			}).Info("[LEDGER] duplicate operation id, transfer already applied")
			return nil
		}
	}

	if _, err := s.Debit(ctx, spec.FromID, spec.Amount); err != nil {
		// Nothing applied; the id must stay usable for the retry.
		s.releaseClaim(ctx, spec.OperationID)
		return err
	}

	if _, err := s.Credit(ctx, spec.ToID, spec.Amount); err != nil {
		if s.compensateDebit(ctx, spec, err) {
			// Fully unwound, so the retry may run the transfer again. When
			// compensation itself failed the claim stays: the sender is
			// already debited and a retry must not debit them twice.
			s.releaseClaim(ctx, spec.OperationID)
		}
		return &TransferFailedError{Cause: err}
	}

	debit := &models.LedgerEntry{
		UserID:      spec.FromID,
		Kind:        spec.DebitKind,
		Amount:      -spec.Amount,
		Description: spec.DebitDescription,
		ListingID:   spec.ListingID,
	}
	credit := &models.LedgerEntry{
		UserID:      spec.ToID,
		Kind:        spec.CreditKind,
		Amount:      spec.Amount,
		Description: spec.CreditDescription,
		ListingID:   spec.ListingID,
	}
	// The transfer is settled once both legs applied. A failed log append
	// leaves the history short one line for reconciliation to notice, but it
	// must not read as money-not-moved: compensating a settled transfer would
	// undo a payment that happened.
	if err := s.RecordEntry(ctx, debit); err != nil {
		s.log.WithError(err).WithField("user_id", spec.FromID).
			Error("[LEDGER] balance moved but debit entry not recorded, log is short one line")
	}
	if err := s.RecordEntry(ctx, credit); err != nil {
		s.log.WithError(err).WithField("user_id", spec.ToID).
			Error("[LEDGER] balance moved but credit entry not recorded, log is short one line")
	}
	return nil
}

func (s *LedgerService) releaseClaim(ctx context.Context, operationID string) {
	if operationID == "" {
		return
	}
	if err := s.accounts.ReleaseOperation(ctx, operationID); err != nil {
		// The id stays burned; a retry will read as already applied. Loggable
		// but not fixable here.
		s.log.WithError(err).WithField("operation_id", operationID).
			Error("[LEDGER] failed to release operation id of an unapplied transfer")
	}
}

// compensateDebit re-credits the sender and reports whether the unwind
// applied.
func (s *LedgerService) compensateDebit(ctx context.Context, spec TransferSpec, cause error) bool {
	if _, err := s.accounts.CreditBalance(ctx, spec.FromID, spec.Amount); err != nil {
		// Both legs failed in sequence: the sender is debited with no
		// matching credit anywhere. This is the one state reconciliation has
		// to repair by hand, so it gets the loudest log line we have.
		s.log.WithError(err).WithFields(logrus.Fields{
			"operation_id": spec.OperationID,
			"from":         spec.FromID,
			"to":           spec.ToID,
			"amount":       spec.Amount,
			"credit_error": cause.Error(),
		}).Error("[LEDGER] compensation failed, sender debited without credit")
		return false
	}
	s.log.WithFields(logrus.Fields{
		"operation_id": spec.OperationID,
		"from":         spec.FromID,
		"to":           spec.ToID,
		"amount":       spec.Amount,
	}).Warn("[LEDGER] credit leg failed, debit compensated")
	return true
}
