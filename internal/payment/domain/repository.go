package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByExternalReference(ctx context.Context, db *gorm.DB, ref string) (*Transaction, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Transaction, error)

	// AttachInvoice stores the gateway payment on a pending transaction.
	AttachInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, gatewayID, invoiceURL string, metadata datatypes.JSONMap, now time.Time) error
	// UpdateMetadata replaces the metadata of a pending transaction.
	UpdateMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSONMap, now time.Time) error
	// MarkFailed moves a pending transaction to failed. It reports whether a row changed.
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, metadata datatypes.JSONMap, now time.Time) (bool, error)
	// Settle moves the pending transaction with ref to status. Only one caller ever sees true.
	Settle(ctx context.Context, db *gorm.DB, ref string, status Status, gatewayID *string, reason *string, paidAt *time.Time, now time.Time) (bool, error)
}
