package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductVariant is the unit stock is tracked at. stock_quantity never goes
// negative; every change is paired with exactly one InventoryMovement.
type ProductVariant struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	StoreID           uuid.UUID       `gorm:"column:store_id;type:uuid;not null;index"`
	SKU               string          `gorm:"column:sku;not null"`
	Size              *string         `gorm:"column:size"`
	Color             *string         `gorm:"column:color"`
	PriceAdjustment   decimal.Decimal `gorm:"column:price_adjustment;type:numeric(12,2);not null;default:0"`
	StockQuantity     int             `gorm:"column:stock_quantity;not null;default:0"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:5"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
