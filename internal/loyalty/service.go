package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/pkg/config"
	dbpkg "github.com/trywear-labs/storefront-backend/pkg/db"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// Thresholds carries the tier boundaries and the accrual rate.
type Thresholds struct {
	PointsPer100 int
	Silver       int
	Gold         int
	Platinum     int
}

// ThresholdsFromConfig maps the loyalty env block onto Thresholds.
func ThresholdsFromConfig(cfg config.LoyaltyConfig) Thresholds {
	return Thresholds{
		PointsPer100: cfg.PointsPer100,
		Silver:       cfg.SilverThreshold,
		Gold:         cfg.GoldThreshold,
		Platinum:     cfg.PlatinumThreshold,
	}
}

// AccountKey identifies a customer's loyalty account within a store.
type AccountKey struct {
	StoreID uuid.UUID
	Phone   string
	Name    *string
}

// EarnResult reports the accrual outcome.
type EarnResult struct {
	AccountID      uuid.UUID
	Points         int
	TotalPoints    int
	LifetimePoints int
	Tier           enums.LoyaltyTier
	AccountCreated bool
}

// RedeemInput is everything a redemption needs; BillAmount is the amount the
// reward discount applies to.
type RedeemInput struct {
	Key        AccountKey
	RewardID   uuid.UUID
	OrderID    uuid.UUID
	BillAmount decimal.Decimal
}

// RedeemResult reports a successful redemption.
type RedeemResult struct {
	RedemptionID   uuid.UUID
	RewardID       uuid.UUID
	AccountID      uuid.UUID
	PointsSpent    int
	DiscountAmount decimal.Decimal
}

// AccountView is an account plus its derived tier.
type AccountView struct {
	Account models.LoyaltyAccount
	Tier    enums.LoyaltyTier
}

// Service is the loyalty accountant. Accrual and redemption must run inside
// the caller's sale transaction; reads run on the base connection.
type Service interface {
	PointsToEarn(amount decimal.Decimal) int
	TierFor(lifetimePoints int) enums.LoyaltyTier
	EarnPoints(ctx context.Context, tx *gorm.DB, key AccountKey, orderID uuid.UUID, amount decimal.Decimal) (*EarnResult, error)
	// QuoteReward previews the monetary discount an active reward would
	// apply to the bill without touching any balances.
	QuoteReward(ctx context.Context, tx *gorm.DB, storeID, rewardID uuid.UUID, billAmount decimal.Decimal) (decimal.Decimal, error)
	RedeemReward(ctx context.Context, tx *gorm.DB, input RedeemInput) (*RedeemResult, error)
	GetAccount(ctx context.Context, storeID uuid.UUID, phone string) (*AccountView, error)
	ListActiveRewards(ctx context.Context, storeID uuid.UUID) ([]models.LoyaltyReward, error)
}

type service struct {
	repo       Repository
	thresholds Thresholds
}

// NewService wires the loyalty accountant.
func NewService(repo Repository, thresholds Thresholds) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if thresholds.PointsPer100 <= 0 {
		return nil, fmt.Errorf("points per 100 must be positive")
	}
	if !(thresholds.Silver < thresholds.Gold && thresholds.Gold < thresholds.Platinum) {
		return nil, fmt.Errorf("tier thresholds must be strictly increasing")
	}
	return &service{repo: repo, thresholds: thresholds}, nil
}

// PointsToEarn is floor(amount/100) * PointsPer100. Fractions of a hundred
// earn nothing.
func (s *service) PointsToEarn(amount decimal.Decimal) int {
	if amount.IsNegative() {
		return 0
	}
	hundreds := amount.Div(oneHundred).Floor()
	return int(hundreds.IntPart()) * s.thresholds.PointsPer100
}

// TierFor derives the status level from lifetime points. Never persisted.
func (s *service) TierFor(lifetimePoints int) enums.LoyaltyTier {
	switch {
	case lifetimePoints >= s.thresholds.Platinum:
		return enums.LoyaltyTierPlatinum
	case lifetimePoints >= s.thresholds.Gold:
		return enums.LoyaltyTierGold
	case lifetimePoints >= s.thresholds.Silver:
		return enums.LoyaltyTierSilver
	default:
		return enums.LoyaltyTierBronze
	}
}

func (s *service) EarnPoints(ctx context.Context, tx *gorm.DB, key AccountKey, orderID uuid.UUID, amount decimal.Decimal) (*EarnResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	points := s.PointsToEarn(amount)
	if points == 0 {
		return &EarnResult{Points: 0, Tier: enums.LoyaltyTierBronze}, nil
	}

	repo := s.repo.WithTx(tx)

	account, created, err := s.findOrCreateAccount(ctx, repo, key)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("earned on order %s", orderID)
	txn := &models.LoyaltyTransaction{
		AccountID: account.ID,
		OrderID:   &orderID,
		Type:      enums.LoyaltyTransactionEarned,
		Points:    points,
		Note:      &note,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record loyalty transaction")
	}
	if err := repo.AddPoints(ctx, account.ID, points); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add points")
	}

	updated, err := repo.GetAccountByID(ctx, account.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload account")
	}

	return &EarnResult{
		AccountID:      updated.ID,
		Points:         points,
		TotalPoints:    updated.TotalPoints,
		LifetimePoints: updated.LifetimePoints,
		Tier:           s.TierFor(updated.LifetimePoints),
		AccountCreated: created,
	}, nil
}

func (s *service) findOrCreateAccount(ctx context.Context, repo Repository, key AccountKey) (*models.LoyaltyAccount, bool, error) {
	account, err := repo.GetAccountByPhone(ctx, key.StoreID, key.Phone)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	fresh := &models.LoyaltyAccount{
		StoreID:       key.StoreID,
		CustomerPhone: key.Phone,
		CustomerName:  key.Name,
	}
	if err := repo.CreateAccount(ctx, fresh); err != nil {
		// Lost the creation race; the winner's row is the account.
		if dbpkg.IsUniqueViolation(err, "ux_loyalty_accounts_store_phone") {
			existing, lookupErr := repo.GetAccountByPhone(ctx, key.StoreID, key.Phone)
			if lookupErr != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, lookupErr, "load account after conflict")
			}
			return existing, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	return fresh, true, nil
}

func (s *service) QuoteReward(ctx context.Context, tx *gorm.DB, storeID, rewardID uuid.UUID, billAmount decimal.Decimal) (decimal.Decimal, error) {
	if storeID == uuid.Nil || rewardID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "store id and reward id required")
	}
	reward, err := s.repo.WithTx(tx).GetReward(ctx, storeID, rewardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "reward not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reward")
	}
	if !reward.Active {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "reward is not active").
			WithDetails(map[string]any{"reward_id": reward.ID.String()})
	}
	return discountFor(reward, billAmount), nil
}

func (s *service) RedeemReward(ctx context.Context, tx *gorm.DB, input RedeemInput) (*RedeemResult, error) {
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}
	if input.RewardID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reward id required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)

	account, err := repo.GetAccountByPhone(ctx, input.Key.StoreID, input.Key.Phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loyalty account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	reward, err := repo.GetReward(ctx, input.Key.StoreID, input.RewardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reward not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reward")
	}
	if !reward.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reward is not active").
			WithDetails(map[string]any{"reward_id": reward.ID.String()})
	}

	// The guard is the authority; the balance read above can already be stale.
	ok, err := repo.DeductPointsGuarded(ctx, account.ID, reward.PointsRequired)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct points")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientPoints, "not enough points for reward").
			WithDetails(map[string]any{
				"points_required": reward.PointsRequired,
				"points_balance":  account.TotalPoints,
			})
	}

	discount := discountFor(reward, input.BillAmount)

	note := fmt.Sprintf("redeemed %s on order %s", reward.Name, input.OrderID)
	txn := &models.LoyaltyTransaction{
		AccountID: account.ID,
		OrderID:   &input.OrderID,
		Type:      enums.LoyaltyTransactionRedeemed,
		Points:    -reward.PointsRequired,
		Note:      &note,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record loyalty transaction")
	}

	redemption := &models.RewardRedemption{
		RewardID:       reward.ID,
		AccountID:      account.ID,
		OrderID:        input.OrderID,
		PointsSpent:    reward.PointsRequired,
		DiscountAmount: discount,
	}
	if err := repo.CreateRedemption(ctx, redemption); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record redemption")
	}
	if err := repo.IncrementRedemptionCount(ctx, reward.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count redemption")
	}

	return &RedeemResult{
		RedemptionID:   redemption.ID,
		RewardID:       reward.ID,
		AccountID:      account.ID,
		PointsSpent:    reward.PointsRequired,
		DiscountAmount: discount,
	}, nil
}

func discountFor(reward *models.LoyaltyReward, billAmount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch reward.DiscountType {
	case enums.RewardDiscountPercentage:
		discount = billAmount.Mul(reward.DiscountValue).Div(oneHundred).Round(2)
	default:
		discount = reward.DiscountValue
	}
	if discount.GreaterThan(billAmount) {
		discount = billAmount
	}
	return discount.Round(2)
}

func (s *service) GetAccount(ctx context.Context, storeID uuid.UUID, phone string) (*AccountView, error) {
	if storeID == uuid.Nil || strings.TrimSpace(phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and phone required")
	}
	account, err := s.repo.GetAccountByPhone(ctx, storeID, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loyalty account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return &AccountView{
		Account: *account,
		Tier:    s.TierFor(account.LifetimePoints),
	}, nil
}

func (s *service) ListActiveRewards(ctx context.Context, storeID uuid.UUID) ([]models.LoyaltyReward, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	rewards, err := s.repo.ListActiveRewards(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rewards")
	}
	return rewards, nil
}

func validateKey(key AccountKey) error {
	if key.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if strings.TrimSpace(key.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	return nil
}
