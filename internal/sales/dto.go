package sales

import (
	"github.com/google/uuid"

	"github.com/trywear-labs/storefront-backend/internal/loyalty"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
)

// SaleLine is one requested cart entry. VariantID is optional; products
// without variants skip stock tracking.
type SaleLine struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// CustomerInfo identifies the buyer for loyalty accrual. Anonymous sales
// leave it nil.
type CustomerInfo struct {
	Name  *string
	Phone string
}

// CompleteSaleInput is everything the checkout needs to finish a sale.
type CompleteSaleInput struct {
	StoreID         uuid.UUID
	CashierID       uuid.UUID
	Lines           []SaleLine
	DiscountPercent int
	RewardID        *uuid.UUID
	PaymentMethod   enums.PaymentMethod
	Customer        *CustomerInfo
}

// Receipt is the durable outcome of a completed sale. Warnings carry
// human-readable notes for clamped lines; the sale itself still succeeds.
type Receipt struct {
	Order      models.Order
	Points     *loyalty.EarnResult
	Redemption *loyalty.RedeemResult
	Warnings   []string
}

// Flagged reports whether any line was clamped below its requested quantity.
func (r *Receipt) Flagged() bool {
	return len(r.Warnings) > 0
}
