package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trywear-labs/storefront-backend/pkg/enums"
)

// InventoryMovement is the append-only audit record of a stock change.
// quantity_change is the delta actually applied (after any oversell clamp),
// so stock_quantity is always reconstructible by replaying movements.
type InventoryMovement struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID          uuid.UUID          `gorm:"column:store_id;type:uuid;not null;index"`
	VariantID        uuid.UUID          `gorm:"column:variant_id;type:uuid;not null;index"`
	MovementType     enums.MovementType `gorm:"column:movement_type;type:movement_type_enum;not null"`
	QuantityChange   int                `gorm:"column:quantity_change;not null"`
	PreviousQuantity int                `gorm:"column:previous_quantity;not null"`
	NewQuantity      int                `gorm:"column:new_quantity;not null"`
	OrderID          *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	Note             *string            `gorm:"column:note"`
	CreatedBy        *uuid.UUID         `gorm:"column:created_by;type:uuid"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
}
