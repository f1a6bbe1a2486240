package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trywear-labs/storefront-backend/pkg/enums"
)

// SaleCompletedEvent is emitted once per completed sale.
type SaleCompletedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	StoreID       uuid.UUID           `json:"store_id"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
	PointsEarned  int                 `json:"points_earned"`
	Flagged       bool                `json:"flagged"`
	CompletedAt   time.Time           `json:"completed_at"`
}

// SaleOversellFlaggedEvent reports a sale whose requested quantity exceeded
// available stock and was clamped.
type SaleOversellFlaggedEvent struct {
	OrderID     uuid.UUID      `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	StoreID     uuid.UUID      `json:"store_id"`
	Lines       []OversoldLine `json:"lines"`
	FlaggedAt   time.Time      `json:"flagged_at"`
}

// OversoldLine details a single clamped cart line.
type OversoldLine struct {
	VariantID uuid.UUID `json:"variant_id"`
	Requested int       `json:"requested"`
	Applied   int       `json:"applied"`
}

// StockAdjustedEvent is emitted for manual stock adjustments outside the sale path.
type StockAdjustedEvent struct {
	VariantID        uuid.UUID          `json:"variant_id"`
	StoreID          uuid.UUID          `json:"store_id"`
	MovementType     enums.MovementType `json:"movement_type"`
	QuantityChange   int                `json:"quantity_change"`
	PreviousQuantity int                `json:"previous_quantity"`
	NewQuantity      int                `json:"new_quantity"`
}

// LowStockDetectedEvent signals a variant dropping to or below its threshold.
type LowStockDetectedEvent struct {
	VariantID     uuid.UUID `json:"variant_id"`
	StoreID       uuid.UUID `json:"store_id"`
	StockQuantity int       `json:"stock_quantity"`
	Threshold     int       `json:"threshold"`
	SuggestedQty  int       `json:"suggested_qty"`
}

// LoyaltyPointsEarnedEvent is emitted when a sale accrues points.
type LoyaltyPointsEarnedEvent struct {
	AccountID     uuid.UUID         `json:"account_id"`
	StoreID       uuid.UUID         `json:"store_id"`
	OrderID       uuid.UUID         `json:"order_id"`
	Points        int               `json:"points"`
	TotalPoints   int               `json:"total_points"`
	LifetimeTotal int               `json:"lifetime_total"`
	Tier          enums.LoyaltyTier `json:"tier"`
}

// RewardRedeemedEvent is emitted when a reward discount is applied to a sale.
type RewardRedeemedEvent struct {
	RedemptionID   uuid.UUID       `json:"redemption_id"`
	RewardID       uuid.UUID       `json:"reward_id"`
	AccountID      uuid.UUID       `json:"account_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	PointsSpent    int             `json:"points_spent"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// SaleInconsistencyFoundEvent reports an order whose stored totals or rows
// disagree with what its parts imply.
type SaleInconsistencyFoundEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	StoreID     uuid.UUID `json:"store_id"`
	Problems    []string  `json:"problems"`
	DetectedAt  time.Time `json:"detected_at"`
}

// LedgerDriftDetectedEvent reports a balance that disagrees with the replay
// of its append-only ledger. Kind is "stock" (VariantID set, movements
// replayed) or "points" (AccountID set, transactions replayed).
type LedgerDriftDetectedEvent struct {
	Kind       string     `json:"kind"`
	VariantID  *uuid.UUID `json:"variant_id,omitempty"`
	AccountID  *uuid.UUID `json:"account_id,omitempty"`
	StoreID    uuid.UUID  `json:"store_id"`
	Recorded   int        `json:"recorded"`
	Replayed   int        `json:"replayed"`
	DetectedAt time.Time  `json:"detected_at"`
}
