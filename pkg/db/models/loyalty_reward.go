package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trywear-labs/storefront-backend/pkg/enums"
)

type LoyaltyReward struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID                `gorm:"column:store_id;type:uuid;not null;index"`
	Name            string                   `gorm:"column:name;not null"`
	PointsRequired  int                      `gorm:"column:points_required;not null"`
	DiscountType    enums.RewardDiscountType `gorm:"column:discount_type;type:reward_discount_type_enum;not null"`
	DiscountValue   decimal.Decimal          `gorm:"column:discount_value;type:numeric(12,2);not null"`
	Active          bool                     `gorm:"column:active;not null;default:true"`
	RedemptionCount int                      `gorm:"column:redemption_count;not null;default:0"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
