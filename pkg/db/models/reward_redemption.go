package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RewardRedemption records a reward applied to an order. The points deduction
// lives in loyalty_transactions; this row carries the monetary side.
type RewardRedemption struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RewardID       uuid.UUID       `gorm:"column:reward_id;type:uuid;not null;index"`
	AccountID      uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	PointsSpent    int             `gorm:"column:points_spent;not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
