package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// CreditInput describes a wallet credit. OrderItemID and RefundKind are
// set for refunds and together with OrderID form the idempotency key.
type CreditInput struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	OrderID     *uuid.UUID
	OrderItemID *uuid.UUID
	RefundKind  *enums.RefundKind
	Reason      string
}

// DebitInput describes a wallet debit tied to an order payment.
type DebitInput struct {
	UserID  uuid.UUID
	Amount  decimal.Decimal
	OrderID *uuid.UUID
	Reason  string
}

// Service is the wallet ledger: append-only transactions with a running
// balance and structured refund idempotency.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.WalletTransaction, error)
	Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.WalletTransaction, error)
	HasRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, orderItemID *uuid.UUID, kind enums.RefundKind) (bool, error)
	ReverseDebit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the wallet ledger with the required dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// Get loads the user's wallet, creating an empty one on first touch.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.getOrCreate(ctx, s.repo, userID)
}

func (s *service) getOrCreate(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := repo.FindByUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	created, err := repo.Create(ctx, &models.Wallet{UserID: userID, Balance: decimal.Zero})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return created, nil
}

func (s *service) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	wallet, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListTransactions(ctx, wallet.ID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	return txns, nil
}

// Credit appends a credit transaction and moves the balance. Refund
// credits short-circuit when the (order, item, kind) key already exists;
// the caller gets the existing row back and no new money moves.
func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.WalletTransaction, error) {
	if input.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	repo := s.repo.WithTx(tx)

	if input.RefundKind != nil && input.OrderID != nil {
		existing, err := repo.FindRefund(ctx, *input.OrderID, input.OrderItemID, *input.RefundKind)
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund idempotency lookup")
		}
		if existing != nil {
			s.logg.Info(ctx, "refund already applied, skipping duplicate credit")
			return existing, nil
		}
	}

	wallet, err := s.getOrCreate(ctx, repo, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateBalance(ctx, wallet.ID, input.Amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply wallet credit")
	}

	txn := &models.WalletTransaction{
		WalletID:    wallet.ID,
		Type:        enums.WalletTransactionCredit,
		Amount:      input.Amount,
		OrderID:     input.OrderID,
		OrderItemID: input.OrderItemID,
		RefundKind:  input.RefundKind,
		Reason:      input.Reason,
	}
	if err := repo.AppendTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append credit transaction")
	}
	return txn, nil
}

// Debit appends a debit transaction and moves the balance down. The
// balance floor is enforced in the update itself, so a race cannot push
// the wallet negative; insufficient funds surface as a state conflict.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.WalletTransaction, error) {
	if input.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	repo := s.repo.WithTx(tx)

	wallet, err := s.getOrCreate(ctx, repo, input.UserID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient wallet balance")
	}
	if err := repo.UpdateBalance(ctx, wallet.ID, input.Amount.Neg()); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient wallet balance")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply wallet debit")
	}

	txn := &models.WalletTransaction{
		WalletID: wallet.ID,
		Type:     enums.WalletTransactionDebit,
		Amount:   input.Amount,
		OrderID:  input.OrderID,
		Reason:   input.Reason,
	}
	if err := repo.AppendTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append debit transaction")
	}
	return txn, nil
}

// HasRefund reports whether a refund credit already exists for the key.
func (s *service) HasRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, orderItemID *uuid.UUID, kind enums.RefundKind) (bool, error) {
	repo := s.repo.WithTx(tx)
	_, err := repo.FindRefund(ctx, orderID, orderItemID, kind)
	if err == nil {
		return true, nil
	}
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund lookup")
}

// ReverseDebit undoes the wallet payment for a failed placement: the
// balance is restored and the original debit row removed so the ledger
// reads as if the payment never happened.
func (s *service) ReverseDebit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	debit, err := repo.FindDebitByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find debit to reverse")
	}
	if err := repo.UpdateBalance(ctx, debit.WalletID, debit.Amount); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore wallet balance")
	}
	if err := repo.DeleteTransaction(ctx, debit.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove reversed debit")
	}
	return nil
}
