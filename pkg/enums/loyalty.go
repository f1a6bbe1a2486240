package enums

import "fmt"

// LoyaltyTransactionType classifies an append-only points ledger entry.
type LoyaltyTransactionType string

const (
	LoyaltyTransactionEarned   LoyaltyTransactionType = "earned"
	LoyaltyTransactionRedeemed LoyaltyTransactionType = "redeemed"
)

var validLoyaltyTransactionTypes = []LoyaltyTransactionType{
	LoyaltyTransactionEarned,
	LoyaltyTransactionRedeemed,
}

// IsValid reports whether the value matches the canonical transaction enum.
func (t LoyaltyTransactionType) IsValid() bool {
	for _, candidate := range validLoyaltyTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLoyaltyTransactionType converts raw input into LoyaltyTransactionType.
func ParseLoyaltyTransactionType(value string) (LoyaltyTransactionType, error) {
	for _, candidate := range validLoyaltyTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loyalty transaction type %q", value)
}

// LoyaltyTier is the status level derived from lifetime points. It is never
// persisted; callers recompute it from lifetime_points on read.
type LoyaltyTier string

const (
	LoyaltyTierBronze   LoyaltyTier = "bronze"
	LoyaltyTierSilver   LoyaltyTier = "silver"
	LoyaltyTierGold     LoyaltyTier = "gold"
	LoyaltyTierPlatinum LoyaltyTier = "platinum"
)

// String implements fmt.Stringer.
func (t LoyaltyTier) String() string {
	return string(t)
}

// RewardDiscountType describes how a loyalty reward changes the bill.
type RewardDiscountType string

const (
	RewardDiscountPercentage RewardDiscountType = "percentage"
	RewardDiscountFixed      RewardDiscountType = "fixed"
)

var validRewardDiscountTypes = []RewardDiscountType{
	RewardDiscountPercentage,
	RewardDiscountFixed,
}

// IsValid reports whether the value matches the canonical reward discount enum.
func (t RewardDiscountType) IsValid() bool {
	for _, candidate := range validRewardDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRewardDiscountType converts raw input into RewardDiscountType.
func ParseRewardDiscountType(value string) (RewardDiscountType, error) {
	for _, candidate := range validRewardDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward discount type %q", value)
}
