package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregateProductVariant OutboxAggregateType = "product_variant"
	AggregateLoyaltyAccount OutboxAggregateType = "loyalty_account"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateProductVariant,
	AggregateLoyaltyAccount,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventSaleCompleted       OutboxEventType = "sale_completed"
	EventSaleOversellFlagged OutboxEventType = "sale_oversell_flagged"
	EventStockAdjusted       OutboxEventType = "stock_adjusted"
	EventLowStockDetected    OutboxEventType = "low_stock_detected"
	EventLoyaltyPointsEarned OutboxEventType = "loyalty_points_earned"
	EventRewardRedeemed      OutboxEventType = "reward_redeemed"
	EventSaleInconsistency   OutboxEventType = "sale_inconsistency_found"
	EventLedgerDriftDetected OutboxEventType = "ledger_drift_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSaleCompleted,
	EventSaleOversellFlagged,
	EventStockAdjusted,
	EventLowStockDetected,
	EventLoyaltyPointsEarned,
	EventRewardRedeemed,
	EventSaleInconsistency,
	EventLedgerDriftDetected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
