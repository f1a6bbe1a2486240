package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trywear-labs/storefront-backend/pkg/enums"
)

// Order is the durable record of a completed point-of-sale transaction.
// Totals satisfy total = (subtotal - discount_amount - loyalty_discount) + tax_amount.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID           `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_orders_store_order_number,priority:1"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_store_order_number,priority:2"`
	CustomerName    *string             `gorm:"column:customer_name"`
	CustomerPhone   *string             `gorm:"column:customer_phone"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountPercent int                 `gorm:"column:discount_percent;not null;default:0"`
	DiscountAmount  decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	LoyaltyDiscount decimal.Decimal     `gorm:"column:loyalty_discount;type:numeric(12,2);not null"`
	TaxPercent      decimal.Decimal     `gorm:"column:tax_percent;type:numeric(5,2);not null"`
	TaxAmount       decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method_enum;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	CreatedBy       uuid.UUID           `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
