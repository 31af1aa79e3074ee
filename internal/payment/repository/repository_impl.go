package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const transactionColumns = `id, tenant_id, kind, amount_cents, currency, status, description, billing_method,
	external_reference, gateway_id, invoice_url, failure_reason, metadata, paid_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	metadata := txn.Metadata
	if metadata == nil {
		metadata = datatypes.JSONMap{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.TenantID,
		string(txn.Kind),
		txn.AmountCents,
		txn.Currency,
		string(txn.Status),
		txn.Description,
		txn.BillingMethod,
		txn.ExternalReference,
		txn.GatewayID,
		txn.InvoiceURL,
		txn.FailureReason,
		metadata,
		txn.PaidAt,
		txn.CreatedAt,
		txn.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	return r.findOne(ctx, db, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
}

func (r *repo) FindByExternalReference(ctx context.Context, db *gorm.DB, ref string) (*domain.Transaction, error) {
	return r.findOne(ctx, db, `SELECT `+transactionColumns+` FROM transactions WHERE external_reference = ?`, ref)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&txn).Error; err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Transaction, error) {
	var items []*domain.Transaction
	stmt := db.WithContext(ctx).Model(&domain.Transaction{}).Where("tenant_id = ?", filter.TenantID)
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", string(filter.Kind))
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AttachInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, gatewayID, invoiceURL string, metadata datatypes.JSONMap, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET gateway_id = ?, invoice_url = ?, metadata = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		gatewayID,
		invoiceURL,
		metadata,
		now,
		id,
		string(domain.StatusPending),
	).Error
}

func (r *repo) UpdateMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSONMap, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET metadata = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		metadata,
		now,
		id,
		string(domain.StatusPending),
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, metadata datatypes.JSONMap, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, failure_reason = ?, metadata = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.StatusFailed),
		reason,
		metadata,
		now,
		id,
		string(domain.StatusPending),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Settle(ctx context.Context, db *gorm.DB, ref string, status domain.Status, gatewayID *string, reason *string, paidAt *time.Time, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?,
		     gateway_id = COALESCE(?, gateway_id),
		     failure_reason = COALESCE(?, failure_reason),
		     paid_at = ?,
		     updated_at = ?
		 WHERE external_reference = ? AND status = ?`,
		string(status),
		gatewayID,
		reason,
		paidAt,
		now,
		ref,
		string(domain.StatusPending),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
