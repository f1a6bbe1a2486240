package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trywear-labs/storefront-backend/pkg/enums"
)

// LoyaltyTransaction is the append-only points ledger entry. The sum of
// points across an account's transactions must always equal total_points.
type LoyaltyTransaction struct {
	ID        uuid.UUID                    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID uuid.UUID                    `gorm:"column:account_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID                   `gorm:"column:order_id;type:uuid;index"`
	Type      enums.LoyaltyTransactionType `gorm:"column:type;type:loyalty_transaction_type_enum;not null"`
	Points    int                          `gorm:"column:points;not null"`
	Note      *string                      `gorm:"column:note"`
	CreatedAt time.Time                    `gorm:"column:created_at;autoCreateTime"`
}
