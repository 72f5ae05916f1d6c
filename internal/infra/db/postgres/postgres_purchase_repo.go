package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct{ pool *pgxpool.Pool }

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

const purchaseColumns = `id, payment_id, user_id, kind, status, credits_purchased, amount_purchased, amount_paid, adults, children, infants, total_amount, travel_date, cashback_paid, created_at, updated_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	pu := &model.Purchase{}
	err := row.Scan(&pu.ID, &pu.PaymentID, &pu.UserID, &pu.Kind, &pu.Status, &pu.CreditsPurchased, &pu.AmountPurchased, &pu.AmountPaid, &pu.Adults, &pu.Children, &pu.Infants, &pu.TotalAmount, &pu.TravelDate, &pu.CashbackPaid, &pu.CreatedAt, &pu.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return pu, nil
}

func (r *purchaseRepo) Save(ctx context.Context, tx repository.Tx, pu *model.Purchase) error {
	const q = `
INSERT INTO purchases (
  id, payment_id, user_id, kind, status, credits_purchased, amount_purchased, amount_paid, adults, children, infants, total_amount, travel_date, cashback_paid, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  status=$5, updated_at=$16;`

	_, err := execSQL(ctx, r.pool, tx, q, pu.ID, pu.PaymentID, pu.UserID, pu.Kind, pu.Status, pu.CreditsPurchased, pu.AmountPurchased, pu.AmountPaid, pu.Adults, pu.Children, pu.Infants, pu.TotalAmount, pu.TravelDate, pu.CashbackPaid, pu.CreatedAt, pu.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *purchaseRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE payment_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus) error {
	const q = `UPDATE purchases SET status=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *purchaseRepo) RecordCashback(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal) error {
	const q = `UPDATE purchases SET cashback_paid=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, amount)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Purchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Purchase
	for rows.Next() {
		pu, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pu)
	}
	return out, nil
}
