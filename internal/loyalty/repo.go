package loyalty

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/pkg/db/models"
)

// Repository manages persistence for loyalty accounts, transactions,
// rewards, and redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAccountByPhone(ctx context.Context, storeID uuid.UUID, phone string) (*models.LoyaltyAccount, error)
	GetAccountByID(ctx context.Context, accountID uuid.UUID) (*models.LoyaltyAccount, error)
	CreateAccount(ctx context.Context, account *models.LoyaltyAccount) error
	// AddPoints atomically increments both balances.
	AddPoints(ctx context.Context, accountID uuid.UUID, points int) error
	// DeductPointsGuarded subtracts only when the balance covers it.
	// Returns false without modifying the row when the guard fails.
	DeductPointsGuarded(ctx context.Context, accountID uuid.UUID, points int) (bool, error)
	CreateTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error
	GetReward(ctx context.Context, storeID, rewardID uuid.UUID) (*models.LoyaltyReward, error)
	ListActiveRewards(ctx context.Context, storeID uuid.UUID) ([]models.LoyaltyReward, error)
	CreateRedemption(ctx context.Context, redemption *models.RewardRedemption) error
	IncrementRedemptionCount(ctx context.Context, rewardID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a loyalty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccountByPhone(ctx context.Context, storeID uuid.UUID, phone string) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND customer_phone = ?", storeID, phone).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	if err := r.db.WithContext(ctx).
		Where("id = ?", accountID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.LoyaltyAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) AddPoints(ctx context.Context, accountID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE loyalty_accounts
		SET total_points = total_points + ?,
			lifetime_points = lifetime_points + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, points, points, accountID).Error
}

func (r *repository) DeductPointsGuarded(ctx context.Context, accountID uuid.UUID, points int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE loyalty_accounts
		SET total_points = total_points - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND total_points >= ?
	`, points, accountID, points)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) GetReward(ctx context.Context, storeID, rewardID uuid.UUID) (*models.LoyaltyReward, error) {
	var reward models.LoyaltyReward
	if err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", rewardID, storeID).
		First(&reward).Error; err != nil {
		return nil, err
	}
	return &reward, nil
}

func (r *repository) ListActiveRewards(ctx context.Context, storeID uuid.UUID) ([]models.LoyaltyReward, error) {
	var rewards []models.LoyaltyReward
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND active = ?", storeID, true).
		Order("points_required ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *repository) CreateRedemption(ctx context.Context, redemption *models.RewardRedemption) error {
	if redemption.ID == uuid.Nil {
		redemption.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *repository) IncrementRedemptionCount(ctx context.Context, rewardID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE loyalty_rewards
		SET redemption_count = redemption_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, rewardID).Error
}
