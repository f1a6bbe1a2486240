package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyAccount holds a customer's points balance for one store, keyed by
// phone number and created lazily on the first qualifying purchase. tier is
// intentionally absent: it is derived from lifetime_points on every read.
type LoyaltyAccount struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID        uuid.UUID `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_loyalty_accounts_store_phone,priority:1"`
	CustomerPhone  string    `gorm:"column:customer_phone;not null;uniqueIndex:ux_loyalty_accounts_store_phone,priority:2"`
	CustomerName   *string   `gorm:"column:customer_name"`
	TotalPoints    int       `gorm:"column:total_points;not null;default:0"`
	LifetimePoints int       `gorm:"column:lifetime_points;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
