package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/pagination"
)

// Repository manages persistence for product variants and inventory movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetVariant(ctx context.Context, storeID, variantID uuid.UUID) (*models.ProductVariant, error)
	// DecrementGuarded subtracts qty only when enough stock remains.
	// Returns false without modifying the row when the guard fails.
	DecrementGuarded(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	// ClampToZero zeroes the stock only if it still equals expected.
	ClampToZero(ctx context.Context, variantID uuid.UUID, expected int) (bool, error)
	IncrementStock(ctx context.Context, variantID uuid.UUID, qty int) error
	CreateMovement(ctx context.Context, movement *models.InventoryMovement) error
	ListLowStock(ctx context.Context, storeID uuid.UUID) ([]models.ProductVariant, error)
	MovementsByOrder(ctx context.Context, storeID, orderID uuid.UUID) ([]models.InventoryMovement, error)
	MovementsByVariant(ctx context.Context, storeID, variantID uuid.UUID, params pagination.Params) ([]models.InventoryMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetVariant(ctx context.Context, storeID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", variantID, storeID).
		First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) DecrementGuarded(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock_quantity = stock_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock_quantity >= ?
	`, qty, variantID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ClampToZero(ctx context.Context, variantID uuid.UUID, expected int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock_quantity = 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock_quantity = ?
	`, variantID, expected)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock_quantity = stock_quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, variantID).Error
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.InventoryMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListLowStock(ctx context.Context, storeID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND stock_quantity <= low_stock_threshold", storeID).
		Order("stock_quantity ASC").
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repository) MovementsByOrder(ctx context.Context, storeID, orderID uuid.UUID) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND order_id = ?", storeID, orderID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) MovementsByVariant(ctx context.Context, storeID, variantID uuid.UUID, params pagination.Params) ([]models.InventoryMovement, error) {
	query := r.db.WithContext(ctx).
		Where("store_id = ? AND variant_id = ?", storeID, variantID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var movements []models.InventoryMovement
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
